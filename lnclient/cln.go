package lnclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lntypes"
)

// clnRequest is a JSON-RPC 2.0 request as Core Lightning's lightning-rpc
// socket expects it.
type clnRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      string      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// clnInvoiceParams are the parameters of the invoice method.
type clnInvoiceParams struct {
	AmountMsat  uint64 `json:"amount_msat"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// clnInvoiceResult is the result of the invoice method.
type clnInvoiceResult struct {
	Bolt11      string `json:"bolt11"`
	PaymentHash string `json:"payment_hash"`
	ExpiresAt   int64  `json:"expires_at"`
}

// clnError is the error object of a failed JSON-RPC call.
type clnError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// clnResponse is a JSON-RPC 2.0 response envelope.
type clnResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      string           `json:"id"`
	Result  clnInvoiceResult `json:"result"`
	Error   *clnError        `json:"error"`
}

// CLNClient creates invoices on a Core Lightning node through its
// lightning-rpc unix domain socket. The socket is dialed fresh for every
// call and closed right after, so the client carries no connection state.
type CLNClient struct {
	socketPath string
	timeout    time.Duration
}

// A compile time flag to ensure the CLNClient satisfies the Client
// interface.
var _ Client = (*CLNClient)(nil)

// NewCLNClient creates a new Core Lightning adapter for the given socket
// path.
func NewCLNClient(opts *CLNConfig, timeout time.Duration) (*CLNClient,
	error) {

	if opts.SocketPath == "" {
		return nil, fmt.Errorf("missing lightning-rpc socket path")
	}

	log.Infof("Using cln backend at %s", opts.SocketPath)

	return &CLNClient{
		socketPath: opts.SocketPath,
		timeout:    timeout,
	}, nil
}

// AddInvoice creates a new invoice on the Core Lightning node. Each invoice
// gets a fresh unique label, which cln requires.
//
// NOTE: This is part of the Client interface.
func (c *CLNClient) AddInvoice(ctx context.Context, amountMsat uint64,
	memo string) (string, lntypes.Hash, error) {

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		log.Errorf("Unable to dial %s: %v", c.socketPath, err)
		return "", lntypes.ZeroHash, ErrBackendUnavailable
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := &clnRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "invoice",
		Params: &clnInvoiceParams{
			AmountMsat:  amountMsat,
			Label:       fmt.Sprintf("l402-%s", uuid.NewString()),
			Description: memo,
		},
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return "", lntypes.ZeroHash, mapContextErr(ctx, err)
	}

	var resp clnResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return "", lntypes.ZeroHash, mapContextErr(ctx, err)
	}
	if resp.Error != nil {
		return "", lntypes.ZeroHash, &RejectedError{
			Reason: fmt.Sprintf("%s (code %d)",
				resp.Error.Message, resp.Error.Code),
		}
	}

	paymentHash, err := lntypes.MakeHashFromStr(resp.Result.PaymentHash)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("error parsing "+
			"payment hash: %w", err)
	}

	return resp.Result.Bolt11, paymentHash, nil
}
