package l402

import (
	"context"

	"github.com/lightningnetwork/lnd/lntypes"
)

// Classification is the L402 state a request ends up in after the
// middleware has inspected it.
type Classification string

const (
	// ClassificationFree marks a request that is not gated: either the
	// client did not opt in to L402 or the route is free.
	ClassificationFree Classification = "FREE"

	// ClassificationPaymentRequired marks a request that was answered
	// with a fresh 402 challenge.
	ClassificationPaymentRequired Classification = "PAYMENT_REQUIRED"

	// ClassificationPaid marks a request that presented a valid token
	// and matching preimage.
	ClassificationPaid Classification = "PAID"

	// ClassificationError marks a request whose token failed to parse or
	// verify, or for which the challenge could not be produced.
	ClassificationError Classification = "ERROR"
)

// Info is the per-request classification record the middleware exposes to
// downstream handlers.
type Info struct {
	// Type is the request's classification.
	Type Classification

	// Preimage is the payment preimage the client presented. Only set
	// for PAID requests.
	Preimage *lntypes.Preimage

	// PaymentHash is the payment hash the token is bound to. Only set
	// for PAID requests.
	PaymentHash *lntypes.Hash

	// Invoice is the BOLT-11 payment request of the challenge. Only set
	// for PAYMENT_REQUIRED requests.
	Invoice string

	// Macaroon is the base64 encoded macaroon of the challenge. Only set
	// for PAYMENT_REQUIRED requests.
	Macaroon string

	// Error describes what went wrong for ERROR requests.
	Error error
}

// ContextKey is the type used to identify L402 values in a request context.
// A struct wrapper avoids collisions with keys of other packages.
type ContextKey struct {
	Name string
}

// KeyInfo is the context key under which the classification record is
// stored.
var KeyInfo = ContextKey{"l402_info"}

// AddToContext returns a child context carrying the given classification
// record.
func AddToContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, KeyInfo, info)
}

// FromContext extracts the classification record from a request context.
// Returns nil if the middleware did not process the request.
func FromContext(ctx context.Context) *Info {
	info, _ := ctx.Value(KeyInfo).(*Info)
	return info
}
