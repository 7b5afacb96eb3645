package l402

import (
	"encoding/base64"
	"errors"
	"fmt"

	"gopkg.in/macaroon.v2"
)

// ErrInvalidMacaroon is returned when a serialized macaroon cannot be
// decoded, either because the base64 framing or the binary body is broken.
var ErrInvalidMacaroon = errors.New("invalid macaroon")

// MarshalMacaroon serializes a macaroon to the standard-base64 encoding of
// its canonical binary form. This is the representation used in both the
// WWW-Authenticate challenge and the Authorization header.
func MarshalMacaroon(mac *macaroon.Macaroon) (string, error) {
	macBytes, err := mac.MarshalBinary()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(macBytes), nil
}

// UnmarshalMacaroon parses a macaroon from its base64 serialized form.
func UnmarshalMacaroon(macStr string) (*macaroon.Macaroon, error) {
	macBytes, err := base64.StdEncoding.DecodeString(macStr)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode failed: %v",
			ErrInvalidMacaroon, err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMacaroon, err)
	}

	return mac, nil
}
