// Package dashboard provides the embedded greenhouse page.
//
// The page is compiled into the binary with Go's embed directive and served
// by the server package at "/". It renders one card per display element and
// keeps them current from the "/api/sse" stream.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Greenhouse page with inline CSS and JavaScript
//
// The page contains a {{.Title}} placeholder that the server replaces with
// the configured title.
//
//go:embed assets/*
var Assets embed.FS
