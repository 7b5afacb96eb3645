// Package mint is the token mint and verifier of the L402 protocol. It
// creates macaroons whose identifier is bound to a Lightning payment hash
// and verifies presented macaroon/preimage pairs against the mint's root
// key.
package mint

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/tollgate-ln/tollgate/l402"
	"gopkg.in/macaroon.v2"
)

const (
	// MinRootKeySize is the smallest root key we accept. Anything
	// shorter weakens the HMAC-SHA256 chain for no reason.
	MinRootKeySize = 32

	// DefaultLocation is the location baked into minted macaroons when
	// the config doesn't name one.
	DefaultLocation = "tollgate"
)

var (
	// ErrBadSignature is returned when a macaroon's HMAC chain does not
	// verify under the mint's root key.
	ErrBadSignature = errors.New("macaroon signature mismatch")

	// ErrInvalidPreimage is returned when the presented preimage does
	// not hash to the payment hash embedded in the token identifier.
	ErrInvalidPreimage = errors.New("invalid preimage")

	// ErrRootKeyTooShort is returned at construction time for root keys
	// below MinRootKeySize.
	ErrRootKeyTooShort = fmt.Errorf("root key shorter than %d bytes",
		MinRootKeySize)
)

// Config packages the dependencies of a mint.
type Config struct {
	// RootKey is the secret all token signatures are chained from. It
	// never leaves the mint.
	RootKey []byte

	// Location is an opaque origin string placed into minted macaroons.
	Location string

	// Now returns the verification time. Defaults to time.Now.
	Now func() time.Time
}

// Mint is able to mint and verify L402 macaroons. Verification is a pure
// function of the root key, the token and the request; the mint holds no
// per-token state.
type Mint struct {
	cfg        Config
	satisfiers []l402.Satisfier
}

// New creates a new mint from the given config.
func New(cfg *Config) (*Mint, error) {
	if len(cfg.RootKey) < MinRootKeySize {
		return nil, ErrRootKeyTooShort
	}

	m := &Mint{cfg: *cfg}
	if m.cfg.Location == "" {
		m.cfg.Location = DefaultLocation
	}
	if m.cfg.Now == nil {
		m.cfg.Now = time.Now
	}
	m.satisfiers = []l402.Satisfier{
		l402.NewRequestPathSatisfier(),
		l402.NewExpirySatisfier(),
	}

	return m, nil
}

// MintMacaroon mints a new macaroon bound to the given payment hash,
// restricted by the given caveats. The identifier carries a fresh random
// nonce, so two tokens for the same payment hash still differ.
func (m *Mint) MintMacaroon(paymentHash lntypes.Hash,
	caveats ...l402.Caveat) (*macaroon.Macaroon, error) {

	id, err := l402.NewIdentifier(paymentHash)
	if err != nil {
		return nil, err
	}

	var idBuf bytes.Buffer
	if err := l402.EncodeIdentifier(&idBuf, id); err != nil {
		return nil, err
	}

	mac, err := macaroon.New(
		m.cfg.RootKey, idBuf.Bytes(), m.cfg.Location,
		macaroon.LatestVersion,
	)
	if err != nil {
		return nil, err
	}

	if err := l402.AddFirstPartyCaveats(mac, caveats...); err != nil {
		return nil, err
	}

	return mac, nil
}

// VerificationParams holds everything needed to verify a presented token.
type VerificationParams struct {
	// Macaroon is the presented token.
	Macaroon *macaroon.Macaroon

	// Preimage is the payment preimage presented alongside the token.
	Preimage lntypes.Preimage

	// Path is the path of the request the token is presented for.
	Path string
}

// VerifyMacaroon verifies a presented macaroon/preimage pair. The HMAC
// chain is checked first so that no work is spent hashing preimages of
// forged tokens, then the preimage is matched against the identifier's
// payment hash in constant time, and finally every caveat is evaluated
// against the request.
func (m *Mint) VerifyMacaroon(params *VerificationParams) error {
	rawCaveats, err := params.Macaroon.VerifySignature(m.cfg.RootKey, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	id, err := l402.DecodeIdentifier(
		bytes.NewReader(params.Macaroon.Id()),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	preimageHash := params.Preimage.Hash()
	if subtle.ConstantTimeCompare(
		preimageHash[:], id.PaymentHash[:],
	) != 1 {
		return ErrInvalidPreimage
	}

	// The interpreter is closed: a caveat we cannot decode rejects the
	// token just like an unknown condition does.
	caveats := make([]l402.Caveat, 0, len(rawCaveats))
	for _, rawCaveat := range rawCaveats {
		caveat, err := l402.DecodeCaveat(rawCaveat)
		if err != nil {
			return fmt.Errorf("%w: %v", l402.ErrUnknownCaveat, err)
		}
		caveats = append(caveats, caveat)
	}

	ctx := &l402.VerifyContext{
		Path: params.Path,
		Now:  m.cfg.Now(),
	}
	return l402.VerifyCaveats(caveats, ctx, m.satisfiers...)
}

// PaymentHashFromMacaroon extracts the payment hash a macaroon's identifier
// is bound to, without verifying the token.
func PaymentHashFromMacaroon(mac *macaroon.Macaroon) (lntypes.Hash, error) {
	id, err := l402.DecodeIdentifier(bytes.NewReader(mac.Id()))
	if err != nil {
		return lntypes.Hash{}, err
	}

	return id.PaymentHash, nil
}
