// internal/browser/session/context_utils.go
package session

import "context"

// CombineContext derives a context from primary that is also cancelled when
// secondary is done. Values and deadline come from primary only, so the chromedp
// target carried by the session context survives while the caller's deadline
// still applies.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}

// Detach returns a context carrying ctx's values but none of its cancellation
// or deadline. Teardown uses it so a cancelled caller can still close Chrome.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
