package auth

import "context"

type contextKey struct{}

// Context carries the authenticated actor's identity and scope. It is built
// once per request by the auth middleware and passed explicitly into domain
// operations; nothing role-related is ever stored globally.
type Context struct {
	UserID           int64
	Username         string
	IsAdmin          bool
	IsDepartmentUser bool
	Department       string
}

func WithActor(ctx context.Context, ac Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(Context)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.IsAdmin
}
