// Package lnclient abstracts heterogeneous Lightning backends behind a
// single invoice-creation capability. Every adapter normalizes amounts to
// millisatoshis on the way in and returns the payment hash as raw 32 bytes
// regardless of the backend's wire representation.
package lnclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
)

const (
	// TypeLND selects the lnd gRPC adapter.
	TypeLND = "LND"

	// TypeCLN selects the Core Lightning unix-socket adapter.
	TypeCLN = "CLN"

	// TypeNWC selects the Nostr Wallet Connect adapter.
	TypeNWC = "NWC"

	// TypeLNURL selects the LNURL-pay adapter.
	TypeLNURL = "LNURL"

	// TypeEclair selects the Eclair REST adapter.
	TypeEclair = "ECLAIR"

	// DefaultTimeout bounds a single invoice creation call.
	DefaultTimeout = 10 * time.Second

	// MinInvoiceMsat is the smallest invoice we ask a backend for:
	// one satoshi.
	MinInvoiceMsat = 1000
)

var (
	// ErrBackendUnavailable is returned when the backend cannot be
	// reached at all.
	ErrBackendUnavailable = errors.New("lightning backend unavailable")

	// ErrBackendTimeout is returned when an invoice creation call
	// exceeds its deadline.
	ErrBackendTimeout = errors.New("lightning backend timeout")
)

// RejectedError is returned when the backend answered but refused to create
// the invoice.
type RejectedError struct {
	// Reason is the backend's explanation.
	Reason string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected invoice: %s", e.Reason)
}

// Client is the only surface the protocol engine consumes from a Lightning
// backend.
type Client interface {
	// AddInvoice creates a new invoice over the given amount, returning
	// the BOLT-11 payment request and its payment hash. The call may
	// block on network I/O and honors cancellation of the passed
	// context.
	AddInvoice(ctx context.Context, amountMsat uint64, memo string) (
		string, lntypes.Hash, error)
}

// LNDConfig holds the connection options of the lnd adapter.
type LNDConfig struct {
	// Address is the host:port of lnd's gRPC interface.
	Address string

	// CertPath is the path to lnd's TLS certificate (PEM).
	CertPath string

	// MacaroonPath is the path to the macaroon presented on every RPC.
	MacaroonPath string
}

// CLNConfig holds the connection options of the Core Lightning adapter.
type CLNConfig struct {
	// SocketPath is the path to the lightning-rpc unix domain socket.
	SocketPath string
}

// NWCConfig holds the connection options of the Nostr Wallet Connect
// adapter.
type NWCConfig struct {
	// URI is the nostr+walletconnect:// pairing URI.
	URI string
}

// LNURLConfig holds the options of the LNURL-pay adapter.
type LNURLConfig struct {
	// Address is a Lightning Address (user@host), a bech32 LNURL string
	// or an lnurlp:// URL.
	Address string
}

// EclairConfig holds the connection options of the Eclair REST adapter.
type EclairConfig struct {
	// APIURL is the base URL of Eclair's REST API.
	APIURL string

	// Password is the API password. Eclair uses basic auth with an
	// empty user name.
	Password string
}

// Config selects and configures one Lightning backend. Exactly one option
// record matching Type must be set.
type Config struct {
	// Type is one of TypeLND, TypeCLN, TypeNWC, TypeLNURL, TypeEclair.
	Type string

	// Network names the Bitcoin network invoices are decoded against:
	// mainnet, testnet or regtest.
	Network string

	// Timeout bounds each invoice creation call. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	LND    *LNDConfig
	CLN    *CLNConfig
	NWC    *NWCConfig
	LNURL  *LNURLConfig
	Eclair *EclairConfig
}

// NewClient constructs the backend adapter selected by the config. The
// dispatch is static: it happens once at startup.
func NewClient(cfg *Config) (Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	switch cfg.Type {
	case TypeLND:
		if cfg.LND == nil {
			return nil, fmt.Errorf("missing LND options")
		}
		return NewLNDClient(cfg.LND, timeout)

	case TypeCLN:
		if cfg.CLN == nil {
			return nil, fmt.Errorf("missing CLN options")
		}
		return NewCLNClient(cfg.CLN, timeout)

	case TypeNWC:
		if cfg.NWC == nil {
			return nil, fmt.Errorf("missing NWC options")
		}
		return NewNWCClient(cfg.NWC, timeout)

	case TypeLNURL:
		if cfg.LNURL == nil {
			return nil, fmt.Errorf("missing LNURL options")
		}
		netParams, err := networkParams(cfg.Network)
		if err != nil {
			return nil, err
		}
		return NewLNURLClient(cfg.LNURL, netParams, timeout)

	case TypeEclair:
		if cfg.Eclair == nil {
			return nil, fmt.Errorf("missing Eclair options")
		}
		return NewEclairClient(cfg.Eclair, timeout)

	default:
		return nil, fmt.Errorf("ln client type not recognized: %s",
			cfg.Type)
	}
}

// networkParams resolves a network name to its chain parameters.
func networkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network: %s", network)
	}
}

// callContext derives the per-call context for a backend RPC.
func callContext(ctx context.Context, timeout time.Duration) (
	context.Context, context.CancelFunc) {

	return context.WithTimeout(ctx, timeout)
}

// mapContextErr translates a context cancellation into the backend error
// taxonomy.
func mapContextErr(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(ctx.Err(), context.DeadlineExceeded):

		return ErrBackendTimeout

	default:
		return err
	}
}
