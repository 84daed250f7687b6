// Package server provides the HTTP server for the greenhouse dashboard.
//
// It serves three things:
//
//   - Dashboard page: the embedded HTML page at "/"
//   - REST API: JSON list of display elements at "/api/display"
//   - Server-Sent Events: every element write at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
