package lnclient

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// macaroonCredential attaches the node macaroon as per-RPC gRPC metadata,
// hex encoded the way lnd expects it.
type macaroonCredential struct {
	macaroonHex string
}

// GetRequestMetadata returns the macaroon metadata for each RPC.
//
// NOTE: This is part of the credentials.PerRPCCredentials interface.
func (m macaroonCredential) GetRequestMetadata(_ context.Context,
	_ ...string) (map[string]string, error) {

	return map[string]string{"macaroon": m.macaroonHex}, nil
}

// RequireTransportSecurity ensures macaroons only travel over TLS.
//
// NOTE: This is part of the credentials.PerRPCCredentials interface.
func (m macaroonCredential) RequireTransportSecurity() bool {
	return true
}

// LNDClient creates invoices on an lnd node over gRPC.
type LNDClient struct {
	client  lnrpc.LightningClient
	conn    *grpc.ClientConn
	timeout time.Duration
}

// A compile time flag to ensure the LNDClient satisfies the Client
// interface.
var _ Client = (*LNDClient)(nil)

// NewLNDClient sets up the gRPC channel to lnd with the TLS certificate and
// macaroon from the given options. The channel connects lazily on the first
// RPC and is reused afterwards; gRPC rebuilds the transport on its own if
// it breaks.
func NewLNDClient(opts *LNDConfig, timeout time.Duration) (*LNDClient,
	error) {

	creds, err := credentials.NewClientTLSFromFile(opts.CertPath, "")
	if err != nil {
		return nil, fmt.Errorf("unable to load tls cert %s: %w",
			opts.CertPath, err)
	}

	macBytes, err := os.ReadFile(opts.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read macaroon %s: %w",
			opts.MacaroonPath, err)
	}

	conn, err := grpc.NewClient(
		opts.Address,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macaroonCredential{
			macaroonHex: hex.EncodeToString(macBytes),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to set up lnd connection: %w",
			err)
	}

	log.Infof("Using lnd backend at %s", opts.Address)

	return &LNDClient{
		client:  lnrpc.NewLightningClient(conn),
		conn:    conn,
		timeout: timeout,
	}, nil
}

// AddInvoice creates a new invoice on the lnd node.
//
// NOTE: This is part of the Client interface.
func (c *LNDClient) AddInvoice(ctx context.Context, amountMsat uint64,
	memo string) (string, lntypes.Hash, error) {

	ctx, cancel := callContext(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.AddInvoice(ctx, &lnrpc.Invoice{
		ValueMsat: int64(amountMsat),
		Memo:      memo,
	})
	if err != nil {
		log.Errorf("Error adding invoice: %v", err)
		s, ok := status.FromError(err)
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded) ||
			(ok && s.Code() == codes.DeadlineExceeded):

			return "", lntypes.ZeroHash, ErrBackendTimeout

		case ok && s.Code() == codes.Unavailable:
			return "", lntypes.ZeroHash, ErrBackendUnavailable

		case ok:
			return "", lntypes.ZeroHash, &RejectedError{
				Reason: s.Message(),
			}

		default:
			return "", lntypes.ZeroHash, mapContextErr(ctx, err)
		}
	}

	paymentHash, err := lntypes.MakeHash(resp.RHash)
	if err != nil {
		return "", lntypes.ZeroHash, fmt.Errorf("error parsing "+
			"payment hash: %w", err)
	}

	return resp.PaymentRequest, paymentHash, nil
}

// Close tears down the gRPC channel.
func (c *LNDClient) Close() error {
	return c.conn.Close()
}
