package ports

import "context"

// StateTracker records OAuth state nonces between the install redirect and the
// callback so a state can only be redeemed once. Implementations apply their
// own TTL; Consume reports whether the nonce was present and removes it.
type StateTracker interface {
	Save(ctx context.Context, nonce string) error
	Consume(ctx context.Context, nonce string) (bool, error)
}
