package l402

import (
	"net/http"
	"testing"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
	macaroon "gopkg.in/macaroon.v2"
)

const testPreimageHex = "2ca931a1c36b48f54948b898a271a53ed91ff9d8d04e52aeb1" +
	"5ad6fe2d32aee2"

// newTestMacaroon mints a throwaway macaroon for header tests.
func newTestMacaroon(t *testing.T) (*macaroon.Macaroon, string) {
	t.Helper()

	mac, err := macaroon.New(
		[]byte("0123456789abcdef0123456789abcdef"), []byte("id"),
		"loc", macaroon.LatestVersion,
	)
	require.NoError(t, err)

	macStr, err := MarshalMacaroon(mac)
	require.NoError(t, err)

	return mac, macStr
}

// TestParseAuthorization checks the strict grammar of incoming authorization
// values.
func TestParseAuthorization(t *testing.T) {
	t.Parallel()

	_, macStr := newTestMacaroon(t)

	tests := []struct {
		name  string
		value string
		err   error
	}{{
		name:  "valid L402",
		value: "L402 " + macStr + ":" + testPreimageHex,
	}, {
		name:  "valid legacy LSAT",
		value: "LSAT " + macStr + ":" + testPreimageHex,
	}, {
		name:  "lowercase scheme",
		value: "l402 " + macStr + ":" + testPreimageHex,
	}, {
		name:  "empty value",
		value: "",
		err:   ErrMissingScheme,
	}, {
		name:  "scheme only",
		value: "L402",
		err:   ErrMissingScheme,
	}, {
		name:  "unknown scheme",
		value: "Bearer " + macStr + ":" + testPreimageHex,
		err:   ErrUnknownScheme,
	}, {
		name:  "no separator",
		value: "L402 " + macStr,
		err:   ErrMalformedParameter,
	}, {
		name:  "missing macaroon",
		value: "L402 :" + testPreimageHex,
		err:   ErrMissingMacaroon,
	}, {
		name:  "missing preimage",
		value: "L402 " + macStr + ":",
		err:   ErrMissingPreimage,
	}, {
		name:  "bad preimage hex",
		value: "L402 " + macStr + ":zzzz",
		err:   ErrMalformedParameter,
	}, {
		name:  "bad macaroon encoding",
		value: "L402 not-base64!:" + testPreimageHex,
		err:   ErrInvalidMacaroon,
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			mac, preimage, err := ParseAuthorization(test.value)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, mac)
			require.Equal(t, testPreimageHex, preimage.String())
		})
	}
}

// TestFromHeader ensures the first parsable Authorization value wins.
func TestFromHeader(t *testing.T) {
	t.Parallel()

	_, macStr := newTestMacaroon(t)

	header := &http.Header{}
	header.Add(HeaderAuthorization, "Bearer something-else")
	header.Add(HeaderAuthorization, "L402 "+macStr+":"+testPreimageHex)

	mac, preimage, err := FromHeader(header)
	require.NoError(t, err)
	require.NotNil(t, mac)
	require.Equal(t, testPreimageHex, preimage.String())

	// No Authorization header at all.
	_, _, err = FromHeader(&http.Header{})
	require.ErrorIs(t, err, ErrMissingScheme)
}

// TestSetHeaderRoundTrip ensures a header written by SetHeader parses back
// into the same token.
func TestSetHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	mac, _ := newTestMacaroon(t)
	preimage, err := lntypes.MakePreimageFromStr(testPreimageHex)
	require.NoError(t, err)

	header := &http.Header{}
	require.NoError(t, SetHeader(header, mac, preimage))

	parsedMac, parsedPreimage, err := FromHeader(header)
	require.NoError(t, err)
	require.Equal(t, preimage, parsedPreimage)

	macBytes, err := mac.MarshalBinary()
	require.NoError(t, err)
	parsedBytes, err := parsedMac.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, macBytes, parsedBytes)
}

// TestAcceptsL402 checks the challenge opt-in header detection.
func TestAcceptsL402(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		result bool
	}{{
		name:   "no header",
		values: nil,
		result: false,
	}, {
		name:   "plain L402",
		values: []string{"L402"},
		result: true,
	}, {
		name:   "legacy LSAT",
		values: []string{"LSAT"},
		result: true,
	}, {
		name:   "lowercase",
		values: []string{"l402"},
		result: true,
	}, {
		name:   "token list",
		values: []string{"Bearer, L402"},
		result: true,
	}, {
		name:   "other scheme only",
		values: []string{"Bearer"},
		result: false,
	}, {
		name:   "multiple header values",
		values: []string{"Bearer", "L402"},
		result: true,
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			header := &http.Header{}
			for _, value := range test.values {
				header.Add(HeaderAcceptAuthenticate, value)
			}

			require.Equal(t, test.result, AcceptsL402(header))
		})
	}
}

// TestChallengeHeaderRoundTrip ensures the canonical challenge rendering
// parses back into the same macaroon and invoice.
func TestChallengeHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	mac, macStr := newTestMacaroon(t)
	invoice := "lnbc1500n1pw5kjhm"

	value, err := NewChallengeHeader(mac, invoice)
	require.NoError(t, err)

	challenge, err := ParseChallengeHeader(value)
	require.NoError(t, err)
	require.Equal(t, macStr, challenge.Macaroon)
	require.Equal(t, invoice, challenge.Invoice)
}

// TestParseChallengeHeader checks the tolerant challenge parser against
// differently shaped inputs.
func TestParseChallengeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		macaroon string
		invoice  string
		err      error
	}{{
		name:     "canonical",
		value:    `L402 macaroon="abc", invoice="lnbc1"`,
		macaroon: "abc",
		invoice:  "lnbc1",
	}, {
		name:     "reversed parameter order",
		value:    `L402 invoice="lnbc1", macaroon="abc"`,
		macaroon: "abc",
		invoice:  "lnbc1",
	}, {
		name:     "unquoted values",
		value:    `L402 macaroon=abc, invoice=lnbc1`,
		macaroon: "abc",
		invoice:  "lnbc1",
	}, {
		name:     "legacy scheme and extra parameter",
		value:    `LSAT macaroon="abc", invoice="lnbc1", realm="x"`,
		macaroon: "abc",
		invoice:  "lnbc1",
	}, {
		name:     "escaped quote in value",
		value:    `L402 macaroon="a\"bc", invoice="lnbc1"`,
		macaroon: `a"bc`,
		invoice:  "lnbc1",
	}, {
		name:  "unknown scheme",
		value: `Basic realm="x"`,
		err:   ErrUnknownScheme,
	}, {
		name:  "missing macaroon",
		value: `L402 invoice="lnbc1"`,
		err:   ErrMissingMacaroon,
	}, {
		name:  "missing invoice",
		value: `L402 macaroon="abc"`,
		err:   ErrMalformedParameter,
	}, {
		name:  "unterminated quote",
		value: `L402 macaroon="abc, invoice="lnbc1"`,
		err:   ErrMalformedParameter,
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			challenge, err := ParseChallengeHeader(test.value)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.macaroon, challenge.Macaroon)
			require.Equal(t, test.invoice, challenge.Invoice)
		})
	}
}
