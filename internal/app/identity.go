package app

import (
	"context"

	"todoapp/api/internal/store"
)

// Identity is the caller resolved by the session gate.
type Identity struct {
	User       store.User
	Session    store.Session
	Credential string
}

type identityKey struct{}

func withIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the caller attached by the session gate.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}
