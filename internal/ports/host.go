package ports

import "context"

// HostUser is the identity resolved from an embedding-host user token.
type HostUser struct {
	ID    string
	Email string
	Name  string
}

// AccessLevel is the host's answer to an experience access check.
type AccessLevel string

const (
	AccessNone     AccessLevel = "no_access"
	AccessCustomer AccessLevel = "customer"
	AccessAdmin    AccessLevel = "admin"
)

// ChargeStatus reports the outcome of a host-side payment.
type ChargeStatus string

const (
	ChargeSucceeded   ChargeStatus = "succeeded"
	ChargeNeedsAction ChargeStatus = "needs_action"
)

// ChargeInput describes a payment request routed through the embedding host.
type ChargeInput struct {
	UserID      string
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// ChargeResult is the host's response to a charge. InAppPurchase carries the
// opaque continuation blob when the charge needs user action.
type ChargeResult struct {
	Status        ChargeStatus
	InAppPurchase map[string]any
}

// HostService is the embedding host's identity, access-control and payments
// capability. The host SDK itself is outside this layer; only the calls this
// core depends on are modeled.
type HostService interface {
	// VerifyUserToken validates a host-issued user token and returns the
	// authenticated user.
	VerifyUserToken(ctx context.Context, token string) (*HostUser, error)

	// CheckAccess reports the user's access level for an experience.
	CheckAccess(ctx context.Context, userID, experienceID string) (AccessLevel, error)

	// ChargeUser charges the user through the host's payment rails.
	ChargeUser(ctx context.Context, input ChargeInput) (*ChargeResult, error)
}
