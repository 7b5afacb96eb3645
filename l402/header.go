package l402

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lightningnetwork/lnd/lntypes"
	"gopkg.in/macaroon.v2"
)

const (
	// HeaderAuthorization is the HTTP header field name that is used to
	// present an L402 token to the server.
	HeaderAuthorization = "Authorization"

	// HeaderAcceptAuthenticate is the HTTP header field name a client
	// uses to signal that it understands L402 challenges.
	HeaderAcceptAuthenticate = "Accept-Authenticate"

	// HeaderWWWAuthenticate is the HTTP header field name the challenge
	// is emitted on.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// Scheme is the canonical authentication scheme token.
	Scheme = "L402"

	// SchemeLegacy is the previous name of the protocol. It is still
	// accepted on incoming headers.
	SchemeLegacy = "LSAT"
)

var (
	// ErrMissingScheme is returned when no authentication scheme is
	// present at all.
	ErrMissingScheme = errors.New("missing authentication scheme")

	// ErrUnknownScheme is returned when the authentication scheme is not
	// L402 (or the legacy LSAT alias).
	ErrUnknownScheme = errors.New("unknown authentication scheme")

	// ErrMalformedParameter is returned when a header value does not
	// follow the expected parameter grammar.
	ErrMalformedParameter = errors.New("malformed parameter")

	// ErrMissingMacaroon is returned when the macaroon part of a header
	// value is absent.
	ErrMissingMacaroon = errors.New("missing macaroon")

	// ErrMissingPreimage is returned when the preimage part of an
	// authorization value is absent.
	ErrMissingPreimage = errors.New("missing preimage")
)

// isL402Scheme reports whether the given token is the L402 scheme, matched
// case-insensitively. The legacy LSAT name is accepted too.
func isL402Scheme(token string) bool {
	return strings.EqualFold(token, Scheme) ||
		strings.EqualFold(token, SchemeLegacy)
}

// ParseAuthorization parses a single Authorization header value of the
// strict form "L402 <macaroon_b64>:<preimage_hex>".
func ParseAuthorization(value string) (*macaroon.Macaroon, lntypes.Preimage,
	error) {

	var zeroPreimage lntypes.Preimage

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, zeroPreimage, ErrMissingScheme
	}

	scheme, rest, found := strings.Cut(value, " ")
	if !found {
		return nil, zeroPreimage, ErrMissingScheme
	}
	if !isL402Scheme(scheme) {
		return nil, zeroPreimage, fmt.Errorf("%w: %s",
			ErrUnknownScheme, scheme)
	}

	macPart, preimagePart, found := strings.Cut(
		strings.TrimSpace(rest), ":",
	)
	if !found {
		return nil, zeroPreimage, fmt.Errorf("%w: expected "+
			"<macaroon>:<preimage>", ErrMalformedParameter)
	}
	macPart = strings.TrimSpace(macPart)
	preimagePart = strings.TrimSpace(preimagePart)
	if macPart == "" {
		return nil, zeroPreimage, ErrMissingMacaroon
	}
	if preimagePart == "" {
		return nil, zeroPreimage, ErrMissingPreimage
	}

	mac, err := UnmarshalMacaroon(macPart)
	if err != nil {
		return nil, zeroPreimage, err
	}
	preimage, err := lntypes.MakePreimageFromStr(preimagePart)
	if err != nil {
		return nil, zeroPreimage, fmt.Errorf("%w: hex decode of "+
			"preimage failed: %v", ErrMalformedParameter, err)
	}

	return mac, preimage, nil
}

// FromHeader tries to extract L402 authentication information from the HTTP
// headers of a request. If multiple Authorization values are present, the
// first one that parses wins.
func FromHeader(header *http.Header) (*macaroon.Macaroon, lntypes.Preimage,
	error) {

	var zeroPreimage lntypes.Preimage

	authHeaders := header.Values(HeaderAuthorization)
	if len(authHeaders) == 0 {
		return nil, zeroPreimage, ErrMissingScheme
	}

	var lastErr error
	for _, authHeader := range authHeaders {
		mac, preimage, err := ParseAuthorization(authHeader)
		if err == nil {
			return mac, preimage, nil
		}
		lastErr = err
	}

	return nil, zeroPreimage, lastErr
}

// SetHeader sets the canonical Authorization header for a macaroon and
// preimage pair, the way a paying client presents its token.
func SetHeader(header *http.Header, mac *macaroon.Macaroon,
	preimage lntypes.Preimage) error {

	macStr, err := MarshalMacaroon(mac)
	if err != nil {
		return err
	}

	header.Set(HeaderAuthorization, fmt.Sprintf(
		"%s %s:%s", Scheme, macStr, preimage.String(),
	))

	return nil
}

// AcceptsL402 reports whether the request opted in to L402 challenges by
// sending an Accept-Authenticate header carrying the L402 scheme token.
func AcceptsL402(header *http.Header) bool {
	for _, value := range header.Values(HeaderAcceptAuthenticate) {
		for _, token := range strings.Split(value, ",") {
			if isL402Scheme(strings.TrimSpace(token)) {
				return true
			}
		}
	}

	return false
}

// Challenge is the parsed content of a WWW-Authenticate L402 challenge.
type Challenge struct {
	// Macaroon is the base64 encoded macaroon of the challenge.
	Macaroon string

	// Invoice is the BOLT-11 payment request the client has to pay.
	Invoice string
}

// HeaderValue renders the challenge as the canonical WWW-Authenticate
// header value.
func (c *Challenge) HeaderValue() string {
	return fmt.Sprintf(
		"%s macaroon=%q, invoice=%q", Scheme, c.Macaroon, c.Invoice,
	)
}

// NewChallengeHeader renders the canonical challenge header value for a
// macaroon and invoice pair.
func NewChallengeHeader(mac *macaroon.Macaroon, invoice string) (string,
	error) {

	macStr, err := MarshalMacaroon(mac)
	if err != nil {
		return "", err
	}

	challenge := &Challenge{Macaroon: macStr, Invoice: invoice}
	return challenge.HeaderValue(), nil
}

// SetChallengeHeader sets the WWW-Authenticate header of a 402 response.
func SetChallengeHeader(header http.Header, mac *macaroon.Macaroon,
	invoice string) error {

	value, err := NewChallengeHeader(mac, invoice)
	if err != nil {
		return err
	}

	header.Set(HeaderWWWAuthenticate, value)
	return nil
}

// ParseChallengeHeader parses a WWW-Authenticate challenge value. Parsing is
// tolerant: the scheme is matched case-insensitively, parameters may appear
// in any order, values may be quoted strings with backslash escapes, and
// whitespace around parameters is ignored. Parameters other than macaroon
// and invoice are skipped.
func ParseChallengeHeader(value string) (*Challenge, error) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found && scheme == "" {
		return nil, ErrMissingScheme
	}
	if !isL402Scheme(scheme) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}

	challenge := &Challenge{}
	params, err := splitParams(rest)
	if err != nil {
		return nil, err
	}
	for _, param := range params {
		key, val, found := strings.Cut(param, "=")
		if !found {
			return nil, fmt.Errorf("%w: %q",
				ErrMalformedParameter, param)
		}

		val, err := unquoteParam(strings.TrimSpace(val))
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "macaroon":
			challenge.Macaroon = val
		case "invoice":
			challenge.Invoice = val
		}
	}

	if challenge.Macaroon == "" {
		return nil, ErrMissingMacaroon
	}
	if challenge.Invoice == "" {
		return nil, fmt.Errorf("%w: no invoice parameter",
			ErrMalformedParameter)
	}

	return challenge, nil
}

// splitParams splits a parameter list on commas that aren't inside a quoted
// string.
func splitParams(s string) ([]string, error) {
	var (
		params   []string
		current  strings.Builder
		inQuotes bool
		escaped  bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
			current.WriteRune(r)

		case r == '\\' && inQuotes:
			escaped = true
			current.WriteRune(r)

		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)

		case r == ',' && !inQuotes:
			params = append(params, strings.TrimSpace(current.String()))
			current.Reset()

		default:
			current.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("%w: unterminated quoted string",
			ErrMalformedParameter)
	}
	if trailing := strings.TrimSpace(current.String()); trailing != "" {
		params = append(params, trailing)
	}

	return params, nil
}

// unquoteParam strips surrounding double quotes from a parameter value and
// resolves backslash escapes inside it.
func unquoteParam(s string) (string, error) {
	if !strings.HasPrefix(s, `"`) {
		return s, nil
	}
	if len(s) < 2 || !strings.HasSuffix(s, `"`) {
		return "", fmt.Errorf("%w: unterminated quoted string",
			ErrMalformedParameter)
	}

	inner := s[1 : len(s)-1]
	var (
		out     strings.Builder
		escaped bool
	)
	for _, r := range inner {
		switch {
		case escaped:
			escaped = false
			out.WriteRune(r)

		case r == '\\':
			escaped = true

		default:
			out.WriteRune(r)
		}
	}
	if escaped {
		return "", fmt.Errorf("%w: dangling escape",
			ErrMalformedParameter)
	}

	return out.String(), nil
}
