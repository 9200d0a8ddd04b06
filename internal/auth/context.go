package auth

import "context"

type contextKey string

const (
	contextKeyPlant   contextKey = "auth.plant_id"
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, plantID string, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, contextKeyPlant, plantID)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	return ctx
}

// PlantIDFromContext extracts plant id from context.
func PlantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if plantID, ok := ctx.Value(contextKeyPlant).(string); ok {
		return plantID
	}
	return ""
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SubjectFromContext extracts the operator id from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if subject, ok := ctx.Value(contextKeySubject).(string); ok {
		return subject
	}
	return ""
}
