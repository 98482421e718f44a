// Package upload ships finished recordings to a remote object store.
//
// A Store is the remote side: DriveStore speaks a Drive-compatible REST API
// with bearer tokens and S3Store writes to an S3 bucket. Stores are prepared
// once through an Initializer, whose EnsureReady returns the ready handle and
// retries preparation on the next call if it failed.
//
// Pipeline runs one upload at a time. Progress is reported monotonically and
// always finishes at 100 on success. After the object is stored a
// best-effort call marks it link-shareable; its failure is logged and does
// not fail the upload.
//
// Failures are classified with errors.Is and errors.As:
//
//   - ErrUnauthorized: the credential is missing or expired.
//   - *ServiceDisabledError: the backend reported that a prerequisite
//     service is disabled and supplied an activation URL.
//   - ErrNetwork (including *APIError and ErrAccessDenied): anything else.
//   - ErrCanceled: the caller canceled the upload.
package upload
