// Package conversion reports marketing conversions through a browser-style
// beacon and a server relay under one shared event id, plus consent-gated
// product analytics.
package conversion

import (
	"context"

	"chocolate-storefront/internal/domain"
	"github.com/oklog/ulid/v2"
)

// NewEventID mints a deduplication id: a millisecond timestamp followed by 80
// random bits, so ids are unique across processes and sort by creation time.
func NewEventID() string {
	return ulid.Make().String()
}

// ConsentChecker answers consent questions at call time.
type ConsentChecker interface {
	HasConsent(c domain.ConsentCategory) bool
}

// RequestInfo is the per-request context the relay needs to match the visitor.
type RequestInfo struct {
	SourceURL string
	ClientIP  string
	UserAgent string
	FBC       string
	FBP       string
}

type requestInfoKey struct{}

// WithRequestInfo attaches request metadata to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

type userKey struct{}

// WithUser attaches matching data for the action in ctx. Non-empty fields
// override the pipeline's signed-in identity.
func WithUser(ctx context.Context, u domain.UserData) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func userFrom(ctx context.Context) (domain.UserData, bool) {
	u, ok := ctx.Value(userKey{}).(domain.UserData)
	return u, ok
}

// RequestInfoFrom returns the request metadata stored in ctx, if any.
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}
