package billing

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2/log"
)

// HandlerFunc handles one decoded event.
type HandlerFunc func(ctx context.Context, ev Event) Outcome

// Router maps event types to handlers. It performs no business logic.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for the given event types.
func (r *Router) Handle(h HandlerFunc, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range eventTypes {
		r.handlers[t] = h
	}
}

// Dispatch runs the handler for ev. Unhandled types are acknowledged as ignored.
func (r *Router) Dispatch(ctx context.Context, ev Event) Outcome {
	r.mu.RLock()
	h, ok := r.handlers[ev.Type]
	r.mu.RUnlock()
	if !ok || ev.Payload == nil {
		log.Infof("[Billing] Ignoring unhandled event %s (%s)", ev.ID, ev.Type)
		return ignored(ReasonUnhandledType)
	}
	return h(ctx, ev)
}
