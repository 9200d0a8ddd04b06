package eventing

import "context"

// SubscribeTyped registers a handler for a concrete event type and takes
// care of the type assertion at the subscription boundary.
func SubscribeTyped[T any](bus EventBus, handler func(ctx context.Context, event T) error) {
	bus.Subscribe(EventTypeOf[T](), func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			return ErrInvalidEventType
		}
		return handler(ctx, typed)
	})
}
