package auth

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller. IsAdmin is fixed when the token is
// verified and is the only admin capability check in the service.
type Identity struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func (i Identity) Authenticated() bool {
	return i.UserID != uuid.Nil
}

// Owns reports whether the caller may act on a resource owned by ownerID.
// Ownerless (guest) resources are open to any caller.
func (i Identity) Owns(ownerID uuid.NullUUID) bool {
	if i.IsAdmin || !ownerID.Valid {
		return true
	}
	return i.Authenticated() && ownerID.UUID == i.UserID
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller identity, or the zero Identity for anonymous requests.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.Authenticated()
}
