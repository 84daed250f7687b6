package serra

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
)

// Surface is a display that holds named text targets.
//
// The poller only ever writes to a surface; it never reads text back.
// Implementations must be safe for use from the poller's result goroutine.
type Surface interface {
	// HasTarget reports whether a target with the given ID exists right now.
	HasTarget(id string) bool

	// SetText replaces the visible text of the target. Writes to unknown
	// IDs are ignored.
	SetText(id, text string)
}

// MultiSurface combines several surfaces into one.
//
// A target exists when any member has it, and a write reaches every member
// that has the target. Nil members are dropped.
func MultiSurface(surfaces ...Surface) Surface {
	ms := make(multiSurface, 0, len(surfaces))
	for _, s := range surfaces {
		if s != nil {
			ms = append(ms, s)
		}
	}
	return ms
}

type multiSurface []Surface

func (ms multiSurface) HasTarget(id string) bool {
	for _, s := range ms {
		if s.HasTarget(id) {
			return true
		}
	}
	return false
}

func (ms multiSurface) SetText(id, text string) {
	for _, s := range ms {
		if s.HasTarget(id) {
			s.SetText(id, text)
		}
	}
}

// recoveringSurface shields a render pass from a panicking surface.
// A panic in one write is logged with a correlation ID and the remaining
// targets are still written.
type recoveringSurface struct {
	Surface
	logger *slog.Logger
}

func (r recoveringSurface) SetText(id, text string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("surface panic",
				"correlation_id", uuid.NewString(),
				"target", id,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
		}
	}()
	r.Surface.SetText(id, text)
}
