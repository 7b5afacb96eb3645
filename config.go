package tollgate

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tollgate-ln/tollgate/lnclient"
)

// Config holds the environment driven settings of the middleware. Every
// field can be set through the environment variable named in its tag.
type Config struct {
	// LNClientType selects the Lightning backend: LND, CLN, NWC, LNURL
	// or ECLAIR.
	LNClientType string `env:"LN_CLIENT_TYPE" env-default:"LND"`

	// RootKey is the macaroon signing key. Hex encoded keys are decoded,
	// anything else is used as raw bytes. At least 32 bytes of key
	// material are required either way.
	RootKey string `env:"ROOT_KEY"`

	// LNDAddress is the host:port of lnd's gRPC interface.
	LNDAddress string `env:"LND_ADDRESS"`

	// MacaroonFilePath points at the lnd macaroon to authenticate with.
	MacaroonFilePath string `env:"MACAROON_FILE_PATH"`

	// CertFilePath points at lnd's TLS certificate.
	CertFilePath string `env:"CERT_FILE_PATH"`

	// CLNSocketPath points at Core Lightning's lightning-rpc unix
	// socket.
	CLNSocketPath string `env:"CLN_LIGHTNING_RPC_FILE_PATH"`

	// NWCURI is the nostr+walletconnect:// pairing URI.
	NWCURI string `env:"NWC_URI"`

	// LNURLAddress is a Lightning Address, bech32 LNURL or lnurlp://
	// URL.
	LNURLAddress string `env:"LNURL_ADDRESS"`

	// EclairAPIURL is the base URL of Eclair's REST API.
	EclairAPIURL string `env:"ECLAIR_API_URL"`

	// EclairPassword is the Eclair API password.
	EclairPassword string `env:"ECLAIR_PASSWORD"`

	// Network names the Bitcoin network invoices are decoded against.
	Network string `env:"LN_NETWORK" env-default:"mainnet"`

	// InvoiceTimeoutSeconds bounds each invoice creation call.
	InvoiceTimeoutSeconds uint `env:"INVOICE_TIMEOUT_SECONDS" env-default:"10"`
}

// ConfigFromEnv reads the configuration from the process environment.
func ConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	return &cfg, nil
}

// rootKeyBytes turns the configured root key string into key material. A
// valid hex string is decoded, anything else is taken verbatim.
func (c *Config) rootKeyBytes() []byte {
	if decoded, err := hex.DecodeString(c.RootKey); err == nil {
		return decoded
	}
	return []byte(c.RootKey)
}

// lnclientConfig maps the flat environment config onto the typed backend
// selection.
func (c *Config) lnclientConfig() *lnclient.Config {
	return &lnclient.Config{
		Type:    c.LNClientType,
		Network: c.Network,
		Timeout: time.Duration(c.InvoiceTimeoutSeconds) * time.Second,
		LND: &lnclient.LNDConfig{
			Address:      c.LNDAddress,
			CertPath:     c.CertFilePath,
			MacaroonPath: c.MacaroonFilePath,
		},
		CLN: &lnclient.CLNConfig{
			SocketPath: c.CLNSocketPath,
		},
		NWC: &lnclient.NWCConfig{
			URI: c.NWCURI,
		},
		LNURL: &lnclient.LNURLConfig{
			Address: c.LNURLAddress,
		},
		Eclair: &lnclient.EclairConfig{
			APIURL:   c.EclairAPIURL,
			Password: c.EclairPassword,
		},
	}
}
