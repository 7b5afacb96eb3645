package lnclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

const (
	// kindNWCRequest is the nostr event kind of a NIP-47 wallet request.
	kindNWCRequest = 23194

	// kindNWCResponse is the nostr event kind of a NIP-47 wallet
	// response.
	kindNWCResponse = 23195
)

// nwcRequest is the cleartext payload of a NIP-47 request event.
type nwcRequest struct {
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// nwcMakeInvoiceParams are the parameters of the make_invoice method. The
// amount is in millisatoshis.
type nwcMakeInvoiceParams struct {
	Amount      uint64 `json:"amount"`
	Description string `json:"description,omitempty"`
}

// nwcResponse is the cleartext payload of a NIP-47 response event.
type nwcResponse struct {
	ResultType string `json:"result_type"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result struct {
		Invoice     string `json:"invoice"`
		PaymentHash string `json:"payment_hash"`
	} `json:"result"`
}

// NWCClient creates invoices on a remote wallet speaking Nostr Wallet
// Connect (NIP-47). Requests are nip04 encrypted to the wallet and
// published to the pairing relay; every call opens its own subscription
// for the matching response event.
type NWCClient struct {
	walletPubKey string
	relayURL     string
	secret       string
	clientPubKey string
	sharedSecret []byte
	timeout      time.Duration
}

// A compile time flag to ensure the NWCClient satisfies the Client
// interface.
var _ Client = (*NWCClient)(nil)

// NewNWCClient parses the nostr+walletconnect:// pairing URI and prepares
// the encryption keys. The relay is only dialed when an invoice is needed.
func NewNWCClient(opts *NWCConfig, timeout time.Duration) (*NWCClient,
	error) {

	walletPubKey, relayURL, secret, err := parseWalletConnectURI(opts.URI)
	if err != nil {
		return nil, err
	}

	clientPubKey, err := nostr.GetPublicKey(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid nwc secret: %w", err)
	}
	sharedSecret, err := nip04.ComputeSharedSecret(walletPubKey, secret)
	if err != nil {
		return nil, fmt.Errorf("unable to derive shared secret: %w",
			err)
	}

	log.Infof("Using nwc backend via relay %s", relayURL)

	return &NWCClient{
		walletPubKey: walletPubKey,
		relayURL:     relayURL,
		secret:       secret,
		clientPubKey: clientPubKey,
		sharedSecret: sharedSecret,
		timeout:      timeout,
	}, nil
}

// parseWalletConnectURI splits a nostr+walletconnect://<pubkey>?relay=…&
// secret=… URI into its parts.
func parseWalletConnectURI(uri string) (string, string, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid nwc uri: %w", err)
	}
	if u.Scheme != "nostr+walletconnect" {
		return "", "", "", fmt.Errorf("invalid nwc uri scheme: %s",
			u.Scheme)
	}

	walletPubKey := u.Host
	if walletPubKey == "" {
		walletPubKey = u.Opaque
	}
	if len(walletPubKey) != 64 {
		return "", "", "", fmt.Errorf("invalid nwc wallet pubkey")
	}

	query := u.Query()
	relayURL := query.Get("relay")
	if relayURL == "" {
		return "", "", "", fmt.Errorf("nwc uri missing relay")
	}
	secret := query.Get("secret")
	if len(secret) != 64 {
		return "", "", "", fmt.Errorf("nwc uri missing secret")
	}

	return walletPubKey, relayURL, secret, nil
}

// AddInvoice asks the paired wallet to make an invoice.
//
// NOTE: This is part of the Client interface.
func (c *NWCClient) AddInvoice(ctx context.Context, amountMsat uint64,
	memo string) (string, lntypes.Hash, error) {

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(&nwcRequest{
		Method: "make_invoice",
		Params: &nwcMakeInvoiceParams{
			Amount:      amountMsat,
			Description: memo,
		},
	})
	if err != nil {
		return "", lntypes.ZeroHash, err
	}
	content, err := nip04.Encrypt(string(payload), c.sharedSecret)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("unable to encrypt "+
			"request: %w", err)
	}

	ev := nostr.Event{
		PubKey:    c.clientPubKey,
		CreatedAt: nostr.Now(),
		Kind:      kindNWCRequest,
		Tags:      nostr.Tags{nostr.Tag{"p", c.walletPubKey}},
		Content:   content,
	}
	if err := ev.Sign(c.secret); err != nil {
		return "", lntypes.ZeroHash, err
	}

	relay, err := nostr.RelayConnect(ctx, c.relayURL)
	if err != nil {
		log.Errorf("Unable to connect to relay %s: %v", c.relayURL,
			err)
		return "", lntypes.ZeroHash, ErrBackendUnavailable
	}
	defer relay.Close()

	// Subscribe for the response before publishing the request so the
	// answer can't slip past us.
	sub, err := relay.Subscribe(ctx, nostr.Filters{{
		Kinds:   []int{kindNWCResponse},
		Authors: []string{c.walletPubKey},
		Tags:    nostr.TagMap{"e": []string{ev.ID}},
	}})
	if err != nil {
		return "", lntypes.ZeroHash, mapContextErr(ctx, err)
	}
	defer sub.Unsub()

	if err := relay.Publish(ctx, ev); err != nil {
		return "", lntypes.ZeroHash, mapContextErr(ctx, err)
	}

	select {
	case respEv, ok := <-sub.Events:
		if !ok {
			return "", lntypes.ZeroHash, ErrBackendUnavailable
		}
		return c.parseResponse(respEv)

	case <-ctx.Done():
		return "", lntypes.ZeroHash, ErrBackendTimeout
	}
}

// parseResponse decrypts and decodes a NIP-47 response event.
func (c *NWCClient) parseResponse(ev *nostr.Event) (string, lntypes.Hash,
	error) {

	plaintext, err := nip04.Decrypt(ev.Content, c.sharedSecret)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("unable to decrypt "+
			"response: %w", err)
	}

	var resp nwcResponse
	if err := json.Unmarshal([]byte(plaintext), &resp); err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("malformed nwc "+
			"response: %w", err)
	}
	if resp.Error != nil {
		return "", lntypes.ZeroHash, &RejectedError{
			Reason: fmt.Sprintf("%s: %s", resp.Error.Code,
				resp.Error.Message),
		}
	}
	if resp.ResultType != "make_invoice" {
		return "", lntypes.ZeroHash, fmt.Errorf("unexpected nwc "+
			"result type: %s", resp.ResultType)
	}

	paymentHash, err := lntypes.MakeHashFromStr(resp.Result.PaymentHash)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("error parsing "+
			"payment hash: %w", err)
	}

	return resp.Result.Invoice, paymentHash, nil
}
