package tenancy

import "context"

type ctxKey string

const tenantKey ctxKey = "replygo.tenant_email"

// WithTenantEmail stores the tenant's email key in context.
func WithTenantEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, tenantKey, email)
}

// TenantEmailFromContext extracts the tenant email if present.
func TenantEmailFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(tenantKey)
	if val == nil {
		return "", false
	}
	email, ok := val.(string)
	return email, ok && email != ""
}
