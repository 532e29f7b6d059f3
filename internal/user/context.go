package user

import "context"

type ctxKey string

const contextKey ctxKey = "authUser"

// ContextWith stores the authenticated user on the request context.
func ContextWith(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey, u)
}

// FromContext returns the authenticated user stored by the auth middleware.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey).(*User)
	return u, ok
}
