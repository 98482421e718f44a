// Package auth provides the storage credential to the upload pipeline.
//
// The daemon never runs an OAuth flow itself. A Broker holds the current
// bearer token and, when the user asks to re-authenticate, opens a pending
// request that the UI completes by posting the new token to the callback
// endpoint. Reauthenticate waits on that single-resolution future with a
// timeout.
//
// Tokens are persisted through a Vault, which seals them with NaCl
// secretbox before they reach the credential table.
package auth
