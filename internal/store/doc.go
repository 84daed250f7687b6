// Package store holds the dashboard's page model.
//
// A page has a fixed set of display elements identified by ID. The poller
// writes rendered text into them and the HTTP server reads them back for the
// JSON API and streams every write to connected browsers.
//
// The main components are:
//
//   - [Store]: Interface defining element writes, reads and subscriptions
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Element]: Current text of one display element
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the poller).
package store
