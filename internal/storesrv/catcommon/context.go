// Package catcommon holds helpers shared by the store's catalog, publish and API layers.
package catcommon

import "context"

type ctxKeyType string

const (
	ctxAdminKey       ctxKeyType = "StoreAdmin"
	ctxTestContextKey ctxKeyType = "StoreTestContext"
)

// SetAdminInContext marks the request as authenticated with the store's admin secret.
func SetAdminInContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxAdminKey, true)
}

func IsAdminFromContext(ctx context.Context) bool {
	admin, _ := ctx.Value(ctxAdminKey).(bool)
	return admin
}

// SetTestContext sets the test context in the provided context.
func SetTestContext(ctx context.Context, isTest bool) context.Context {
	return context.WithValue(ctx, ctxTestContextKey, isTest)
}

// TestContextFromContext retrieves the test context from the provided context.
func TestContextFromContext(ctx context.Context) bool {
	if testContext, ok := ctx.Value(ctxTestContextKey).(bool); ok {
		return testContext
	}
	return false
}
