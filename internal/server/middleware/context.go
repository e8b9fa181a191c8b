package middleware

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the authenticated caller: the session token's user id with the stored username and role.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// WithIdentity returns a context carrying id. Handlers read it via GetIdentity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the identity from context and true if set with a non-empty user id; otherwise zero, false.
func GetIdentity(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey).(Identity)
	if !ok || v.UserID == "" {
		return Identity{}, false
	}
	return v, true
}
