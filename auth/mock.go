package auth

import (
	"context"
	"net/http"

	"github.com/tollgate-ln/tollgate/l402"
)

// MockAuthenticator is a fake authenticator for tests, accepting or denying
// everything depending on its fields.
type MockAuthenticator struct {
	// AcceptErr is returned by every Accept call.
	AcceptErr error

	// Challenge is returned by every FreshChallenge call.
	Challenge *l402.Challenge

	// ChallengeErr, if set, is returned by FreshChallenge instead.
	ChallengeErr error
}

// A compile time flag to ensure the MockAuthenticator satisfies the
// Authenticator interface.
var _ Authenticator = (*MockAuthenticator)(nil)

// NewMockAuthenticator creates a new MockAuthenticator that accepts every
// token and hands out a static challenge.
func NewMockAuthenticator() *MockAuthenticator {
	return &MockAuthenticator{
		Challenge: &l402.Challenge{
			Macaroon: "AgEEbW9jaw==",
			Invoice:  "lnbcmock1",
		},
	}
}

// Accept returns the configured error.
//
// NOTE: This is part of the Authenticator interface.
func (a *MockAuthenticator) Accept(_ *http.Header, _ string) error {
	return a.AcceptErr
}

// FreshChallenge returns the configured challenge.
//
// NOTE: This is part of the Authenticator interface.
func (a *MockAuthenticator) FreshChallenge(_ context.Context,
	_ *http.Request, _ uint64, _ ...l402.Caveat) (*l402.Challenge,
	error) {

	if a.ChallengeErr != nil {
		return nil, a.ChallengeErr
	}
	return a.Challenge, nil
}
