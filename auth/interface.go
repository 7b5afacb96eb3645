// Package auth glues the macaroon mint and the Lightning backend together
// into the two operations the protocol engine needs: verifying a presented
// token and producing a fresh payment challenge.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/tollgate-ln/tollgate/l402"
)

// ErrInvalidToken is the uniform error surfaced for any token that fails
// verification. The concrete reason is logged but never returned, so a
// probing client can't distinguish a bad signature from a bad preimage.
var ErrInvalidToken = errors.New("invalid token")

// Authenticator is the generic interface for validating client headers and
// producing new challenges.
type Authenticator interface {
	// Accept returns nil if the given request headers carry a token that
	// successfully authenticates the request path.
	Accept(header *http.Header, path string) error

	// FreshChallenge mints a new macaroon bound to a new invoice over the
	// given amount, for the user to pay and complete.
	FreshChallenge(ctx context.Context, r *http.Request,
		amountMsat uint64, caveats ...l402.Caveat) (*l402.Challenge,
		error)
}
