package l402

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lightningnetwork/lnd/lntypes"
)

const (
	// LatestVersion is the latest version of a token identifier we
	// understand. Tokens with a newer version are rejected.
	LatestVersion byte = 0

	// NonceSize is the number of random bytes appended to an identifier
	// to make every minted token unique, even for the same payment hash.
	NonceSize = 8

	// identifierSize is the size in bytes of an encoded identifier:
	// one version byte, the payment hash and the nonce.
	identifierSize = 1 + lntypes.HashSize + NonceSize
)

// ErrUnknownVersion is returned when parsing an identifier with a version
// we don't know how to interpret.
var ErrUnknownVersion = errors.New("unknown identifier version")

// Identifier contains the static identifying details of a token. This is
// used as the macaroon's opaque identifier, binding the token to exactly one
// Lightning payment.
type Identifier struct {
	// Version is the version of the identifier encoding.
	Version byte

	// PaymentHash is the payment hash of the invoice that was issued
	// together with the token. Only the preimage of this hash unlocks the
	// capability the token represents.
	PaymentHash lntypes.Hash

	// Nonce is a random value that makes each identifier unique.
	Nonce [NonceSize]byte
}

// NewIdentifier mints a fresh identifier for the given payment hash with a
// cryptographically random nonce.
func NewIdentifier(paymentHash lntypes.Hash) (*Identifier, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}

	return &Identifier{
		Version:     LatestVersion,
		PaymentHash: paymentHash,
		Nonce:       nonce,
	}, nil
}

// EncodeIdentifier encodes an identifier to its binary wire form:
// version || payment_hash || nonce.
func EncodeIdentifier(w io.Writer, id *Identifier) error {
	if id.Version > LatestVersion {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, id.Version)
	}

	for _, field := range []interface{}{
		id.Version, id.PaymentHash, id.Nonce,
	} {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	return nil
}

// DecodeIdentifier decodes an identifier from its binary wire form.
func DecodeIdentifier(r io.Reader) (*Identifier, error) {
	var version byte
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, err
	}
	if version > LatestVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}

	var id Identifier
	id.Version = version
	if err := binary.Read(r, binary.BigEndian, &id.PaymentHash); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &id.Nonce); err != nil {
		return nil, err
	}

	return &id, nil
}
