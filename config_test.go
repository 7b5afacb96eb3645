package tollgate

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tollgate-ln/tollgate/lnclient"
)

// TestConfigFromEnv checks the environment mapping and its defaults.
func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LN_CLIENT_TYPE", "CLN")
	t.Setenv("CLN_LIGHTNING_RPC_FILE_PATH", "/tmp/lightning-rpc")
	t.Setenv("LN_NETWORK", "regtest")
	t.Setenv("INVOICE_TIMEOUT_SECONDS", "5")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "CLN", cfg.LNClientType)
	require.Equal(t, "regtest", cfg.Network)

	clientCfg := cfg.lnclientConfig()
	require.Equal(t, lnclient.TypeCLN, clientCfg.Type)
	require.Equal(t, "/tmp/lightning-rpc", clientCfg.CLN.SocketPath)
	require.Equal(t, 5*time.Second, clientCfg.Timeout)
	require.Equal(t, "regtest", clientCfg.Network)
}

// TestConfigDefaults checks that unset variables fall back to their
// documented defaults.
func TestConfigDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "LND", cfg.LNClientType)
	require.Equal(t, "mainnet", cfg.Network)
	require.EqualValues(t, 10, cfg.InvoiceTimeoutSeconds)
}

// TestRootKeyBytes ensures hex keys are decoded and raw keys pass through.
func TestRootKeyBytes(t *testing.T) {
	t.Parallel()

	hexKey := "000102030405060708090a0b0c0d0e0f" +
		"000102030405060708090a0b0c0d0e0f"
	cfg := &Config{RootKey: hexKey}
	decoded, err := hex.DecodeString(hexKey)
	require.NoError(t, err)
	require.Equal(t, decoded, cfg.rootKeyBytes())

	raw := "this is not hex but still a perfectly fine secret"
	cfg = &Config{RootKey: raw}
	require.Equal(t, []byte(raw), cfg.rootKeyBytes())
}
