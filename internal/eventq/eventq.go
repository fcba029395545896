// Package eventq provides non-blocking channel send helpers for event fan-out.
package eventq

// Offer performs a non-blocking send.
// It returns true when the value was sent and false when the channel is full
// or closed. Loop progress events are advisory; a slow or absent consumer
// must never stall an iteration.
func Offer[T any](ch chan<- T, value T) (sent bool) {
	if ch == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}
