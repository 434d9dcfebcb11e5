package server

import (
	"context"

	"domino-engine/models"
)

// ForwardEvents hands every session event to each handler until the channel
// closes or ctx ends.
func ForwardEvents(ctx context.Context, events <-chan models.Event, handlers ...func(models.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			for _, handle := range handlers {
				handle(event)
			}
		}
	}
}
