package l402

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/macaroon.v2"
)

// Op is the comparison operator of a caveat predicate.
type Op string

const (
	// OpEqual requires the request attribute to match the caveat value
	// exactly.
	OpEqual Op = "="

	// OpLess requires the request attribute to be numerically below the
	// caveat value.
	OpLess Op = "<"

	// OpGreater requires the request attribute to be numerically above
	// the caveat value.
	OpGreater Op = ">"
)

// ErrInvalidCaveat is returned when a raw caveat string does not follow the
// "condition op value" grammar.
var ErrInvalidCaveat = errors.New("invalid caveat")

// Caveat is a predicate that restricts the authorization of a macaroon. The
// predicate is a single line of the form "condition op value" evaluated
// against the request at verification time.
type Caveat struct {
	// Condition names the request attribute the predicate applies to.
	Condition string

	// Op is the comparison operator.
	Op Op

	// Value is the value the attribute is compared against.
	Value string
}

// NewCaveat constructs a caveat from its parts.
func NewCaveat(condition string, op Op, value string) Caveat {
	return Caveat{Condition: condition, Op: op, Value: value}
}

// String returns a user-readable rendition of a caveat.
func (c Caveat) String() string {
	return EncodeCaveat(c)
}

// EncodeCaveat encodes a caveat to its string representation, e.g.
// "RequestPath=/protected" or "expires_at<1700000000".
func EncodeCaveat(c Caveat) string {
	return fmt.Sprintf("%s%s%s", c.Condition, c.Op, c.Value)
}

// DecodeCaveat decodes a caveat from its string representation. Whitespace
// around the condition, operator and value is tolerated, so both
// "RequestPath=/a" and "RequestPath = /a" parse to the same caveat.
func DecodeCaveat(s string) (Caveat, error) {
	idx := strings.IndexAny(s, "=<>")
	if idx <= 0 {
		return Caveat{}, fmt.Errorf("%w: %q", ErrInvalidCaveat, s)
	}

	condition := strings.TrimSpace(s[:idx])
	value := strings.TrimSpace(s[idx+1:])
	if condition == "" || value == "" {
		return Caveat{}, fmt.Errorf("%w: %q", ErrInvalidCaveat, s)
	}

	return Caveat{
		Condition: condition,
		Op:        Op(s[idx : idx+1]),
		Value:     value,
	}, nil
}

// AddFirstPartyCaveats adds a set of caveats as first-party caveats to a
// macaroon. The macaroon's signature chain is extended once per caveat.
func AddFirstPartyCaveats(mac *macaroon.Macaroon, caveats ...Caveat) error {
	for _, c := range caveats {
		rawCaveat := []byte(EncodeCaveat(c))
		if err := mac.AddFirstPartyCaveat(rawCaveat); err != nil {
			return err
		}
	}

	return nil
}
