package lnclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
)

// eclairInvoice is the subset of Eclair's createinvoice response we care
// about.
type eclairInvoice struct {
	// Serialized is the BOLT-11 payment request.
	Serialized string `json:"serialized"`

	// PaymentHash is the hex encoded payment hash.
	PaymentHash string `json:"paymentHash"`
}

// EclairClient creates invoices on an Eclair node through its REST API.
// Eclair authenticates with HTTP basic auth using an empty user name and
// the API password.
type EclairClient struct {
	apiURL   string
	password string
	client   *http.Client
	timeout  time.Duration
}

// A compile time flag to ensure the EclairClient satisfies the Client
// interface.
var _ Client = (*EclairClient)(nil)

// NewEclairClient creates a new Eclair adapter for the given API base URL.
func NewEclairClient(opts *EclairConfig, timeout time.Duration) (
	*EclairClient, error) {

	if opts.APIURL == "" {
		return nil, fmt.Errorf("missing eclair api url")
	}

	log.Infof("Using eclair backend at %s", opts.APIURL)

	return &EclairClient{
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		password: opts.Password,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
	}, nil
}

// AddInvoice creates a new invoice on the Eclair node.
//
// NOTE: This is part of the Client interface.
func (c *EclairClient) AddInvoice(ctx context.Context, amountMsat uint64,
	memo string) (string, lntypes.Hash, error) {

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	form := url.Values{
		"amountMsat":  {strconv.FormatUint(amountMsat, 10)},
		"description": {memo},
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.apiURL+"/createinvoice",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", lntypes.ZeroHash, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("", c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("Error adding invoice: %v", err)
		return "", lntypes.ZeroHash, mapHTTPErr(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("could not read "+
			"response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", lntypes.ZeroHash, &RejectedError{
			Reason: fmt.Sprintf("eclair returned status %d: %s",
				resp.StatusCode, strings.TrimSpace(
					string(body))),
		}
	}

	var invoice eclairInvoice
	if err := json.Unmarshal(body, &invoice); err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("malformed eclair "+
			"response: %w", err)
	}

	paymentHash, err := lntypes.MakeHashFromStr(invoice.PaymentHash)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("error parsing "+
			"payment hash: %w", err)
	}

	return invoice.Serialized, paymentHash, nil
}
