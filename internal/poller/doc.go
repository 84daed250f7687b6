// Package poller fetches sensor snapshots on a fixed cadence.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout and size limits
//   - [Scheduler]: Fires a fetch immediately on start and then on every
//     tick, either single-flight (ticks are skipped while a fetch is in
//     flight) or overlapping
//   - [Result]: Raw outcome of one fetch
//
// The package knows nothing about snapshot fields or display targets;
// decoding and rendering happen in the serra package.
package poller
