package types

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// CircuitName is the file stem of the compiled constraint system and keys
	CircuitName = "Sha256PreimageCircuit"

	StoreFile   = "file"
	StoreBadger = "badger"
)

// NetworkPreset is a named chain the tool knows how to reach without extra configuration
type NetworkPreset struct {
	Name        string
	ChainID     uint64
	RPCEndpoint string
}

// Presets are the networks available by name
var Presets = map[string]NetworkPreset{
	"hardhat": {
		Name:        "hardhat",
		ChainID:     1337,
		RPCEndpoint: "http://127.0.0.1:8545",
	},
	"arc_testnet": {
		Name:        "arc_testnet",
		ChainID:     5042002,
		RPCEndpoint: "https://rpc.testnet.arc.network",
	},
}

// Config holds the prover and submitter configuration
type Config struct {
	RootDir string

	Network string
	// RPCEndpoint overrides the preset endpoint of Network
	RPCEndpoint string
	// PrivateKey is the hex encoded signing key of the submitting account
	PrivateKey string

	// BuildDir holds the constraint system and the proving/verifying keys
	BuildDir string
	// ArtifactsDir holds proofs, deployments and verification records
	ArtifactsDir string
	// Store is either "file" or "badger"
	Store string

	GasLimitHash   uint64
	GasLimitVerify uint64
	// GasPrice in wei; nil means ask the node
	GasPrice       *big.Int
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	LogLevel  string
	LogFormat string
}

// NewConfig builds the configuration from defaults, an optional .env file under ROOT and the environment.
func NewConfig() *Config {
	root := getEnv("ROOT", ".")
	loadDotEnv(root)
	return configFromEnv(getEnv("ROOT", root))
}

// LoadConfig is NewConfig for an explicit root directory. Variables already in the
// environment, including those of a .env loaded earlier, take precedence over root/.env.
func LoadConfig(root string) *Config {
	loadDotEnv(root)
	return configFromEnv(root)
}

func loadDotEnv(root string) {
	// a missing .env file is fine
	_ = godotenv.Load(filepath.Join(root, ".env"))
}

func configFromEnv(root string) *Config {
	config := Config{
		RootDir:        root,
		Network:        getEnv("NETWORK", "hardhat"),
		RPCEndpoint:    getEnv("RPC_ENDPOINT", ""),
		PrivateKey:     getEnv("PRIVATE_KEY", ""),
		BuildDir:       getEnv("BUILD_DIR", ".build"),
		ArtifactsDir:   getEnv("ARTIFACTS_DIR", "data"),
		Store:          getEnv("STORE", StoreFile),
		GasLimitHash:   getEnvUint("GAS_LIMIT_HASH", 500_000),
		GasLimitVerify: getEnvUint("GAS_LIMIT_VERIFY", 3_000_000),
		ConfirmTimeout: getEnvDuration("CONFIRM_TIMEOUT", 2*time.Minute),
		PollInterval:   getEnvDuration("POLL_INTERVAL", time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	if v := getEnv("GAS_PRICE", ""); v != "" {
		if price, ok := new(big.Int).SetString(v, 10); ok {
			config.GasPrice = price
		}
	}

	return &config
}

// Validate checks the configuration before any component is built from it
func (c *Config) Validate() error {
	if c.Network == "" {
		return fmt.Errorf("network must be set")
	}
	if _, ok := Presets[c.Network]; !ok && c.RPCEndpoint == "" {
		return fmt.Errorf("unknown network %q requires an RPC endpoint", c.Network)
	}
	switch c.Store {
	case StoreFile, StoreBadger:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.GasLimitHash == 0 || c.GasLimitVerify == 0 {
		return fmt.Errorf("gas limits must be positive")
	}
	if c.ConfirmTimeout <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("confirm timeout and poll interval must be positive")
	}
	if c.GasPrice != nil && c.GasPrice.Sign() < 0 {
		return fmt.Errorf("gas price must not be negative")
	}
	return nil
}

// Endpoint returns the RPC endpoint for the configured network
func (c *Config) Endpoint() string {
	if c.RPCEndpoint != "" {
		return c.RPCEndpoint
	}
	return Presets[c.Network].RPCEndpoint
}

// ExpectedChainID returns the preset chain id of the network, or 0 for custom networks
func (c *Config) ExpectedChainID() uint64 {
	return Presets[c.Network].ChainID
}

// Path resolves p against the root directory
func (c *Config) Path(p ...string) string {
	if len(p) > 0 && filepath.IsAbs(p[0]) {
		return filepath.Join(p...)
	}
	return filepath.Join(append([]string{c.RootDir}, p...)...)
}

// CircuitPaths returns the constraint system, proving key and verifying key file paths
func (c *Config) CircuitPaths() (ccsPath, pkPath, vkPath string) {
	dir := c.Path(c.BuildDir)
	return filepath.Join(dir, CircuitName+".ccs"),
		filepath.Join(dir, CircuitName+".pk"),
		filepath.Join(dir, CircuitName+".vk")
}

// SolidityPath is where the exported verifier contract is written
func (c *Config) SolidityPath() string {
	return c.Path("contracts", "Sha256PreimageVerifier.sol")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	v, err := strconv.ParseUint(strings.ReplaceAll(getEnv(key, ""), "_", ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
