package types

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	t.Setenv("ROOT", t.TempDir())
	for _, key := range []string{"NETWORK", "RPC_ENDPOINT", "STORE", "GAS_LIMIT_HASH", "GAS_LIMIT_VERIFY", "GAS_PRICE", "CONFIRM_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "hardhat", cfg.Network)
	require.Equal(t, "http://127.0.0.1:8545", cfg.Endpoint())
	require.Equal(t, uint64(1337), cfg.ExpectedChainID())
	require.Equal(t, uint64(500_000), cfg.GasLimitHash)
	require.Equal(t, uint64(3_000_000), cfg.GasLimitVerify)
	require.Nil(t, cfg.GasPrice)
	require.Equal(t, 2*time.Minute, cfg.ConfirmTimeout)
	require.Equal(t, StoreFile, cfg.Store)

	ccs, pk, vk := cfg.CircuitPaths()
	require.Equal(t, filepath.Join(cfg.RootDir, ".build", CircuitName+".ccs"), ccs)
	require.Equal(t, filepath.Join(cfg.RootDir, ".build", CircuitName+".pk"), pk)
	require.Equal(t, filepath.Join(cfg.RootDir, ".build", CircuitName+".vk"), vk)
	require.Equal(t, filepath.Join(cfg.RootDir, "contracts", "Sha256PreimageVerifier.sol"), cfg.SolidityPath())
}

func TestNewConfigReadsDotEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ROOT", root)
	// godotenv does not override variables that are already set
	os.Unsetenv("NETWORK")
	os.Unsetenv("GAS_LIMIT_VERIFY")
	os.Unsetenv("GAS_PRICE")
	t.Cleanup(func() {
		os.Unsetenv("NETWORK")
		os.Unsetenv("GAS_LIMIT_VERIFY")
		os.Unsetenv("GAS_PRICE")
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("NETWORK=arc_testnet\nGAS_LIMIT_VERIFY=4_000_000\nGAS_PRICE=2000000000\n"), 0644))

	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "arc_testnet", cfg.Network)
	require.Equal(t, "https://rpc.testnet.arc.network", cfg.Endpoint())
	require.Equal(t, uint64(5042002), cfg.ExpectedChainID())
	require.Equal(t, uint64(4_000_000), cfg.GasLimitVerify)
	require.Equal(t, int64(2_000_000_000), cfg.GasPrice.Int64())
}

func TestLoadConfigUsesGivenRoot(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ROOT", t.TempDir())
	os.Unsetenv("STORE")
	t.Cleanup(func() { os.Unsetenv("STORE") })
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("STORE=badger\n"), 0644))

	cfg := LoadConfig(root)
	require.Equal(t, root, cfg.RootDir)
	require.Equal(t, StoreBadger, cfg.Store)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Network:        "hardhat",
			Store:          StoreBadger,
			GasLimitHash:   1,
			GasLimitVerify: 1,
			ConfirmTimeout: time.Second,
			PollInterval:   time.Millisecond,
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"no network":      func(c *Config) { c.Network = "" },
		"unknown network": func(c *Config) { c.Network = "mainnet" },
		"unknown store":   func(c *Config) { c.Store = "redis" },
		"zero gas":        func(c *Config) { c.GasLimitVerify = 0 },
		"zero poll":       func(c *Config) { c.PollInterval = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			require.Error(t, c.Validate())
		})
	}

	custom := valid()
	custom.Network = "mainnet"
	custom.RPCEndpoint = "http://localhost:9545"
	require.NoError(t, custom.Validate())
	require.Equal(t, "http://localhost:9545", custom.Endpoint())
	require.Zero(t, custom.ExpectedChainID())
}
