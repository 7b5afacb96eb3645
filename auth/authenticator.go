package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tollgate-ln/tollgate/l402"
	"github.com/tollgate-ln/tollgate/lnclient"
	"github.com/tollgate-ln/tollgate/mint"
)

// L402Authenticator is an authenticator that uses macaroons to verify
// payment of Lightning invoices before granting access.
type L402Authenticator struct {
	minter *mint.Mint
	client lnclient.Client
}

// A compile time flag to ensure the L402Authenticator satisfies the
// Authenticator interface.
var _ Authenticator = (*L402Authenticator)(nil)

// NewL402Authenticator creates a new authenticator backed by the given mint
// and Lightning client.
func NewL402Authenticator(minter *mint.Mint,
	client lnclient.Client) *L402Authenticator {

	return &L402Authenticator{
		minter: minter,
		client: client,
	}
}

// Accept returns nil if the given request headers carry a token that
// successfully authenticates the request path.
//
// NOTE: This is part of the Authenticator interface.
func (l *L402Authenticator) Accept(header *http.Header, path string) error {
	mac, preimage, err := l402.FromHeader(header)
	if err != nil {
		log.Debugf("Deny: header extraction failed: %v", err)
		return ErrInvalidToken
	}

	err = l.minter.VerifyMacaroon(&mint.VerificationParams{
		Macaroon: mac,
		Preimage: preimage,
		Path:     path,
	})
	if err != nil {
		log.Debugf("Deny: token verification failed: %v", err)
		return ErrInvalidToken
	}

	return nil
}

// FreshChallenge creates a new invoice over the given amount, mints a
// macaroon bound to its payment hash and returns both, ready to be put into
// a challenge header.
//
// NOTE: This is part of the Authenticator interface.
func (l *L402Authenticator) FreshChallenge(ctx context.Context,
	r *http.Request, amountMsat uint64, caveats ...l402.Caveat) (
	*l402.Challenge, error) {

	memo := fmt.Sprintf("L402 %s%s", r.Host, r.URL.Path)
	invoice, paymentHash, err := l.client.AddInvoice(
		ctx, amountMsat, memo,
	)
	if err != nil {
		log.Errorf("Error creating invoice: %v", err)
		return nil, err
	}

	mac, err := l.minter.MintMacaroon(paymentHash, caveats...)
	if err != nil {
		log.Errorf("Error minting macaroon: %v", err)
		return nil, err
	}
	macString, err := l402.MarshalMacaroon(mac)
	if err != nil {
		return nil, err
	}

	return &l402.Challenge{
		Macaroon: macString,
		Invoice:  invoice,
	}, nil
}
