package auth

import "context"

// Principal is the authenticated caller of a request.
type Principal struct {
	// PatientID is set for callers holding a patient session.
	PatientID string
	// Admin is set for callers presenting a valid admin token.
	Admin bool
	// Subject names the admin operator, when known.
	Subject string
}

// CanActFor reports whether the caller may manage patientID's data.
func (p Principal) CanActFor(patientID string) bool {
	if p.Admin {
		return true
	}
	return p.PatientID != "" && p.PatientID == patientID
}

// Name identifies the caller in audit fields such as Invite.CreatedBy.
func (p Principal) Name() string {
	if p.Admin {
		if p.Subject != "" {
			return "admin:" + p.Subject
		}
		return "admin"
	}
	return p.PatientID
}

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
