package lnclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/require"
)

// testInvoice is a real mainnet invoice used as a canned LNURL server
// response.
const testInvoice = "lnbc1500n1pw5kjhmpp5fu6xhthlt2vucmzkx6c7wtlh2r625r30c" +
	"yjsfqhu8rsx4xpz5lwqdpa2fjkzep6yptksct5yp5hxgrrv96hx6twvusycn3qv9jx7" +
	"ur5d9hkugr5dusx6cqzpgxqr23s79ruapxc4j5uskt4htly2salw4drq979d7rcela9" +
	"wz02elhypmdzmzlnxuknpgfyfm86pntt8vvkvffma5qc9n50h4mvqhngadqy3ngqjcym5a"

// newLNURLTestServer runs a fake LNURL-pay service and returns a client
// pointed at it.
func newLNURLTestServer(t *testing.T, pay payResponse,
	invoice string) (*LNURLClient, *httptest.Server, *string) {

	t.Helper()

	var lastCallbackQuery string
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/pay", func(w http.ResponseWriter, _ *http.Request) {
		resp := pay
		if resp.Callback == "" {
			resp.Callback = server.URL + "/invoice"
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/invoice", func(w http.ResponseWriter,
		r *http.Request) {

		lastCallbackQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(invoiceResponse{
			PayRequest: invoice,
		})
	})

	client := &LNURLClient{
		url:     server.URL + "/pay",
		network: &chaincfg.MainNetParams,
		client:  server.Client(),
		timeout: time.Second,
	}

	return client, server, &lastCallbackQuery
}

// TestLNURLAddInvoice checks the two-step fetch against a fake LNURL
// service.
func TestLNURLAddInvoice(t *testing.T) {
	t.Parallel()

	client, _, callbackQuery := newLNURLTestServer(t, payResponse{
		MinSendable: 1000,
		MaxSendable: 100000000,
		Metadata:    `[["text/plain","paywall"]]`,
		Tag:         payRequestTag,
	}, testInvoice)

	invoice, paymentHash, err := client.AddInvoice(
		context.Background(), 150000, "ignored",
	)
	require.NoError(t, err)
	require.Equal(t, testInvoice, invoice)
	require.Equal(t, "amount=150000", *callbackQuery)

	// The returned payment hash must be the one committed to in the
	// invoice.
	decoded, err := zpay32.Decode(testInvoice, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, decoded.PaymentHash[:], paymentHash[:])
}

// TestLNURLAmountOutOfRange ensures the sendable bounds of the service are
// enforced before the callback request.
func TestLNURLAmountOutOfRange(t *testing.T) {
	t.Parallel()

	client, _, callbackQuery := newLNURLTestServer(t, payResponse{
		MinSendable: 1000,
		MaxSendable: 2000,
		Tag:         payRequestTag,
	}, testInvoice)

	_, _, err := client.AddInvoice(context.Background(), 150000, "")

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Contains(t, rejected.Reason, "out of range")
	require.Empty(t, *callbackQuery)
}

// TestLNURLWrongTag ensures a response that isn't a payRequest is refused.
func TestLNURLWrongTag(t *testing.T) {
	t.Parallel()

	client, _, _ := newLNURLTestServer(t, payResponse{
		MinSendable: 1000,
		MaxSendable: 100000000,
		Tag:         "withdrawRequest",
	}, testInvoice)

	_, _, err := client.AddInvoice(context.Background(), 150000, "")

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	require.Contains(t, rejected.Reason, "incorrect tag")
}

// TestLNURLBrokenInvoice ensures an undecodable invoice from the service is
// an error.
func TestLNURLBrokenInvoice(t *testing.T) {
	t.Parallel()

	client, _, _ := newLNURLTestServer(t, payResponse{
		MinSendable: 1000,
		MaxSendable: 100000000,
		Tag:         payRequestTag,
	}, "lnbc1notaninvoice")

	_, _, err := client.AddInvoice(context.Background(), 150000, "")
	require.Error(t, err)
}

// TestParseLNURL checks address resolution for all supported input forms.
func TestParseLNURL(t *testing.T) {
	t.Parallel()

	// Round-trip a URL through bech32 to get a valid LNURL string.
	const rawURL = "https://example.com/pay"
	converted, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	require.NoError(t, err)
	encoded, err := bech32.Encode(lnurlHRP, converted)
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  string
		result string
		err    bool
	}{{
		name:   "lightning address",
		input:  "alice@example.com",
		result: "https://example.com/.well-known/lnurlp/alice",
	}, {
		name:   "lnurlp url",
		input:  "lnurlp://example.com/pay",
		result: "https://example.com/pay",
	}, {
		name:   "bech32 lnurl",
		input:  strings.ToUpper(encoded),
		result: rawURL,
	}, {
		name:   "lightning prefixed bech32",
		input:  "lightning:" + encoded,
		result: rawURL,
	}, {
		name:  "unsupported form",
		input: "http://example.com/pay",
		err:   true,
	}, {
		name:  "address with too many parts",
		input: "a@b@c",
		err:   true,
	}}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			url, err := parseLNURL(test.input)
			if test.err {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.result, url)
		})
	}
}
