package auth

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
	"github.com/tollgate-ln/tollgate/l402"
	"github.com/tollgate-ln/tollgate/lnclient"
	"github.com/tollgate-ln/tollgate/mint"
)

// newTestAuthenticator builds an authenticator over a fresh mint and an
// in-memory Lightning backend.
func newTestAuthenticator(t *testing.T) (*L402Authenticator,
	*lnclient.MockClient) {

	t.Helper()

	rootKey := make([]byte, mint.MinRootKeySize)
	_, err := rand.Read(rootKey)
	require.NoError(t, err)

	minter, err := mint.New(&mint.Config{RootKey: rootKey})
	require.NoError(t, err)

	client := lnclient.NewMockClient()
	return NewL402Authenticator(minter, client), client
}

// TestChallengeAndAccept walks a token through its whole life: challenge,
// payment, presentation.
func TestChallengeAndAccept(t *testing.T) {
	t.Parallel()

	authenticator, client := newTestAuthenticator(t)

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	challenge, err := authenticator.FreshChallenge(
		context.Background(), r, 1000, l402.NewCaveat(
			l402.CondRequestPath, l402.OpEqual, "/protected",
		),
	)
	require.NoError(t, err)
	require.NotEmpty(t, challenge.Invoice)

	// The minted macaroon must be bound to the invoice the backend
	// created.
	mac, err := l402.UnmarshalMacaroon(challenge.Macaroon)
	require.NoError(t, err)
	paymentHash, err := mint.PaymentHashFromMacaroon(mac)
	require.NoError(t, err)

	invoice, ok := client.Invoice(paymentHash)
	require.True(t, ok)
	require.Equal(t, challenge.Invoice, invoice.PaymentRequest)

	// Pretend the invoice was paid and present the resulting token.
	header := &http.Header{}
	require.NoError(t, l402.SetHeader(header, mac, invoice.Preimage))

	require.NoError(t, authenticator.Accept(header, "/protected"))

	// The path caveat closes off every other path.
	require.ErrorIs(
		t, authenticator.Accept(header, "/other"), ErrInvalidToken,
	)
}

// TestAcceptRejections ensures broken or foreign tokens are all answered
// with the same uniform error.
func TestAcceptRejections(t *testing.T) {
	t.Parallel()

	authenticator, client := newTestAuthenticator(t)

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	challenge, err := authenticator.FreshChallenge(
		context.Background(), r, 1000,
	)
	require.NoError(t, err)

	mac, err := l402.UnmarshalMacaroon(challenge.Macaroon)
	require.NoError(t, err)
	paymentHash, err := mint.PaymentHashFromMacaroon(mac)
	require.NoError(t, err)
	_, ok := client.Invoice(paymentHash)
	require.True(t, ok)

	// No Authorization header at all.
	err = authenticator.Accept(&http.Header{}, "/protected")
	require.ErrorIs(t, err, ErrInvalidToken)

	// A preimage that doesn't belong to the invoice.
	var wrongPreimage lntypes.Preimage
	header := &http.Header{}
	require.NoError(t, l402.SetHeader(header, mac, wrongPreimage))
	err = authenticator.Accept(header, "/protected")
	require.ErrorIs(t, err, ErrInvalidToken)

	// A header that isn't even parsable.
	header = &http.Header{}
	header.Set(l402.HeaderAuthorization, "L402 garbage")
	err = authenticator.Accept(header, "/protected")
	require.ErrorIs(t, err, ErrInvalidToken)
}

// TestFreshChallengeBackendError ensures backend failures bubble up
// untouched so the caller can map them to a response.
func TestFreshChallengeBackendError(t *testing.T) {
	t.Parallel()

	authenticator, client := newTestAuthenticator(t)
	client.Err = lnclient.ErrBackendUnavailable

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	_, err := authenticator.FreshChallenge(
		context.Background(), r, 1000,
	)
	require.ErrorIs(t, err, lnclient.ErrBackendUnavailable)
}
