package shared

import "context"

type userContextKey struct{}

// ContextWithUserID stores the acting user id in context.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserIDFromContext extracts the acting user id from context, zero when absent.
func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(userContextKey{}).(int64)
	return id
}
