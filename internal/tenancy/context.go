package tenancy

import "context"

type ctxKey string

const (
	clinicKey ctxKey = "salescore.clinic_id"
	actorKey  ctxKey = "salescore.actor_id"
)

// WithClinicID stores the clinic id in context. An empty clinic id means the
// caller operates without a tenant filter.
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicKey, clinicID)
}

// ClinicIDFromContext extracts the clinic id if present.
func ClinicIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(clinicKey)
	if val == nil {
		return "", false
	}
	clinicID, ok := val.(string)
	return clinicID, ok && clinicID != ""
}

// WithActorID stores the authenticated sales user id in context.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorIDFromContext extracts the sales user id if present.
func ActorIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(actorKey)
	if val == nil {
		return "", false
	}
	actorID, ok := val.(string)
	return actorID, ok && actorID != ""
}
