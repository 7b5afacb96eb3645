package lnclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/zpay32"
)

const (
	// lnurlHRP is the human readable part of a bech32 LNURL string.
	lnurlHRP = "lnurl"

	// payRequestTag is the tag expected in the response of the invoice
	// request.
	payRequestTag = "payRequest"
)

// payResponse is the structure of the JSON response expected from the
// initial query to the LNURL server.
type payResponse struct {
	// Callback is the URL from LN SERVICE which will accept the pay
	// request parameters.
	Callback string `json:"callback"`

	// MaxSendable is the max amount LN SERVICE is willing to receive,
	// in millisatoshi.
	MaxSendable uint64 `json:"maxSendable"`

	// MinSendable is the min amount LN SERVICE is willing to receive,
	// can not be less than 1 or more than MaxSendable.
	MinSendable uint64 `json:"minSendable"`

	// Metadata json which must be presented as raw string here, this is
	// required to pass signature verification at a later step.
	Metadata string `json:"metadata"`

	// Type of LNURL.
	Tag string `json:"tag"`
}

// invoiceResponse is the structure of the JSON response we expect from the
// query to the Callback received in the payResponse.
type invoiceResponse struct {
	// PayRequest is a bech32-serialized lightning invoice.
	PayRequest string `json:"pr"`
}

// LNURLClient creates invoices by asking an LNURL-pay endpoint or Lightning
// Address for them. The remote service is the receiver of the payment, so
// unlike the node backed adapters this one never sees the preimage.
type LNURLClient struct {
	url     string
	network *chaincfg.Params
	client  *http.Client
	timeout time.Duration
}

// A compile time flag to ensure the LNURLClient satisfies the Client
// interface.
var _ Client = (*LNURLClient)(nil)

// NewLNURLClient resolves the configured address into the pay endpoint URL.
// No network request is made until an invoice is needed.
func NewLNURLClient(opts *LNURLConfig, network *chaincfg.Params,
	timeout time.Duration) (*LNURLClient, error) {

	url, err := parseLNURL(opts.Address)
	if err != nil {
		return nil, err
	}

	log.Infof("Using lnurl backend at %s", url)

	return &LNURLClient{
		url:     url,
		network: network,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}, nil
}

// parseLNURL parses the given LNURL into the URL that should be queried when
// a new invoice is required.
func parseLNURL(lnurl string) (string, error) {
	var (
		url string
		err error
	)
	switch {
	// If the string starts with "LNURL" then the string is just the
	// bech32 encoding of the URL to use.
	case strings.HasPrefix(lnurl, "LNURL"):
		url, err = decodeLNURL(lnurl)
		if err != nil {
			return "", fmt.Errorf("error decoding LNURL: %w", err)
		}

	// If the string prefix is "lightning:" then what follows should be
	// the bech32 encoding of the URL to use.
	case strings.HasPrefix(lnurl, "lightning:"):
		url, err = decodeLNURL(strings.TrimPrefix(lnurl, "lightning:"))
		if err != nil {
			return "", fmt.Errorf("error decoding LNURL: %w", err)
		}

	// If the string starts with "lnurlp" then this part just needs to be
	// replaced with "https" in order to reconstruct the URL to use.
	case strings.HasPrefix(lnurl, "lnurlp"):
		url = strings.Replace(lnurl, "lnurlp", "https", 1)

	// If the string contains an "@" symbol then this is a Lightning
	// Address.
	case strings.Contains(lnurl, "@"):
		parts := strings.Split(lnurl, "@")
		if len(parts) != 2 {
			return "", fmt.Errorf("invalid LN address. Expected " +
				"the form <username>@<domain>")
		}

		username, domain := parts[0], parts[1]
		url = fmt.Sprintf(
			"https://%s/.well-known/lnurlp/%s", domain, username,
		)

	default:
		return "", fmt.Errorf("unsupported LNURL address")
	}

	return url, nil
}

// decodeLNURL does a bech32 decode of an LNURL string.
func decodeLNURL(lnurl string) (string, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.ToLower(lnurl))
	if err != nil {
		return "", err
	}

	if hrp != lnurlHRP {
		return "", fmt.Errorf("incorrect hrp for LNURL. Expected "+
			"'%s', got '%s'", lnurlHRP, hrp)
	}

	data, err = bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// AddInvoice fetches a new invoice over the given amount from the LNURL
// server. The memo is ignored since the LNURL service controls the invoice
// description.
//
// NOTE: This is part of the Client interface.
func (c *LNURLClient) AddInvoice(ctx context.Context, amountMsat uint64,
	_ string) (string, lntypes.Hash, error) {

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	// Make a GET request to the decoded LNURL.
	var payResp payResponse
	if err := c.get(ctx, c.url, &payResp); err != nil {
		return "", lntypes.ZeroHash, err
	}

	// Ensure that the response has the correct tag.
	if payResp.Tag != payRequestTag {
		return "", lntypes.ZeroHash, &RejectedError{
			Reason: fmt.Sprintf("incorrect tag received. "+
				"Expected %s, got %s", payRequestTag,
				payResp.Tag),
		}
	}

	// Check that the LNURL server accepts the given amount.
	if amountMsat < payResp.MinSendable ||
		amountMsat > payResp.MaxSendable {

		return "", lntypes.ZeroHash, &RejectedError{
			Reason: fmt.Sprintf("amount %d msat out of range "+
				"[%d, %d] of the lnurl server", amountMsat,
				payResp.MinSendable, payResp.MaxSendable),
		}
	}

	delim := "?"
	if strings.Contains(payResp.Callback, "?") {
		delim = "&"
	}
	getInvoiceReq := fmt.Sprintf(
		"%s%samount=%d", payResp.Callback, delim, amountMsat,
	)

	// Now make a request to the callback URL with the parameters of the
	// invoice we want.
	var invoice invoiceResponse
	if err := c.get(ctx, getInvoiceReq, &invoice); err != nil {
		return "", lntypes.ZeroHash, err
	}

	inv, err := zpay32.Decode(invoice.PayRequest, c.network)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("error decoding "+
			"invoice: %w", err)
	}

	// If the invoice commits to a description hash it must match the
	// metadata received before.
	if inv.DescriptionHash != nil {
		metaHash := sha256.Sum256(
			[]byte(html.UnescapeString(payResp.Metadata)),
		)
		if !bytes.Equal(inv.DescriptionHash[:], metaHash[:]) {
			return "", lntypes.ZeroHash, &RejectedError{
				Reason: "invalid invoice description hash " +
					"received from the LNURL server",
			}
		}
	}

	paymentHash, err := lntypes.MakeHash(inv.PaymentHash[:])
	if err != nil {
		return "", lntypes.ZeroHash, err
	}

	return invoice.PayRequest, paymentHash, nil
}

// get makes an HTTP GET request to the given URL and attempts to unmarshal
// the response.
func (c *LNURLClient) get(ctx context.Context, url string,
	out interface{}) error {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("GET %s: %v", url, err)
		return mapHTTPErr(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &RejectedError{
			Reason: fmt.Sprintf("lnurl server returned status "+
				"%d", resp.StatusCode),
		}
	}

	return json.Unmarshal(body, out)
}

// mapHTTPErr translates an HTTP transport error into the backend error
// taxonomy.
func mapHTTPErr(ctx context.Context, err error) error {
	if mapped := mapContextErr(ctx, err); mapped == ErrBackendTimeout {
		return mapped
	}
	return ErrBackendUnavailable
}
