package store

import "time"

// Element is the current state of one display target on the page.
type Element struct {
	// ID is the target's stable logical name, e.g. "internal-temperature".
	ID string `json:"id"`

	// Text is the visible text. Empty until the first write.
	Text string `json:"text"`

	// Rendered reports whether the element has been written at least once.
	Rendered bool `json:"rendered"`

	// UpdatedAt is the time of the last write. Zero until the first write.
	UpdatedAt time.Time `json:"updated_at"`
}

// Store defines the page model: a fixed set of elements that can be
// written, read back for serving, and subscribed to.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// HasTarget reports whether an element with the given ID exists.
	HasTarget(id string) bool

	// SetText updates an element's text and notifies subscribers.
	// Unknown IDs are ignored.
	SetText(id, text string)

	// GetAll returns every element in declaration order.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []Element

	// Subscribe returns a channel that receives element updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Element

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Element)
}
