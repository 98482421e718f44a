// Package middleware provides HTTP middleware for the recorder API.
//
// It includes:
//   - Request logging in W3C Extended Log Format through the application logger
//   - Prometheus request metrics labelled by mux route template
//   - gzip compression for JSON responses, bypassed for event streams and video
package middleware
