package auth

import "context"

type contextKey struct{}

type AuthContext struct {
	UserID      int64
	HouseholdID *int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// HouseholdID returns the caller's household id, or 0 when unauthenticated
// or unaffiliated.
func HouseholdID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok || ac.HouseholdID == nil {
		return 0
	}
	return *ac.HouseholdID
}
