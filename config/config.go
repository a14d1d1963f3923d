package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	JWTKey string

	// Content store (Pinata)
	PinataJWT        string
	PinataApiURL     string
	PinataGatewayURL string
	StoreTimeout     time.Duration

	// Chain
	RpcURL                   string
	PrivateKey               string // optional, server-key signing path
	WalletProviderURL        string // optional, interactive signing path
	ContractAddress          string
	ChainID                  int64
	ConfirmationTimeout      time.Duration
	ConfirmationPollInterval time.Duration
	ExplorerTxURL            string

	// Certificate content
	GenericImageURI string
	IssuerName      string
	CertLocale      string
	CertFontDir     string

	// Notifications
	SendgridApiKey string
	EmailSender    string

	ReconcileSchedule string
	LogLevel          string
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

var hexAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = FromEnv()

	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.PinataJWT == "" {
		log.Println("Warning: PINATA_JWT is not set. Certificate uploads will be rejected.")
	}
	if AppConfig.PrivateKey == "" && AppConfig.WalletProviderURL == "" {
		log.Println("Warning: neither PRIVATE_KEY nor WALLET_PROVIDER_URL is set. Issuance will fail with SIGNING_KEY_MISSING.")
	}
}

// FromEnv reads the configuration without touching .env files.
func FromEnv() *Config {
	return &Config{
		Port:   getEnv("PORT", "3000"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		PinataJWT:        os.Getenv("PINATA_JWT"),
		PinataApiURL:     getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
		PinataGatewayURL: getEnv("PINATA_GATEWAY_URL", "https://red-occasional-mule-247.mypinata.cloud"),
		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 30*time.Second),

		RpcURL:                   getEnv("RPC_URL", "https://rpc.sepolia.org"),
		PrivateKey:               os.Getenv("PRIVATE_KEY"),
		WalletProviderURL:        os.Getenv("WALLET_PROVIDER_URL"),
		ContractAddress:          os.Getenv("CONTRACT_ADDRESS"),
		ChainID:                  int64(getEnvInt("CHAIN_ID", 11155111)),
		ConfirmationTimeout:      getEnvDuration("CONFIRMATION_TIMEOUT", 5*time.Minute),
		ConfirmationPollInterval: getEnvDuration("CONFIRMATION_POLL_INTERVAL", 4*time.Second),
		ExplorerTxURL:            getEnv("EXPLORER_TX_URL", "https://sepolia.etherscan.io/tx/"),

		GenericImageURI: getEnv("GENERIC_IMAGE_URI", "https://red-occasional-mule-247.mypinata.cloud/ipfs/bafkreiaj6rqcsipmhf4ene3e6uviklgava5srmrzllnkjizkmeml6hl23u"),
		IssuerName:      getEnv("ISSUER_NAME", "Data Campus"),
		CertLocale:      getEnv("CERT_LOCALE", "fr_FR"),
		CertFontDir:     os.Getenv("CERT_FONT_DIR"),

		SendgridApiKey: os.Getenv("SENDGRID_API_KEY"),
		EmailSender:    getEnv("EMAIL_SENDER", "certificates@datacampus.io"),

		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports configuration that makes every issuance fail. A missing
// signing key is not one of them: it is reported per attempt.
func (c *Config) Validate() error {
	var errs []error
	if c.ContractAddress == "" {
		errs = append(errs, errors.New("CONTRACT_ADDRESS is required"))
	} else if !hexAddress.MatchString(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("CONTRACT_ADDRESS %q is not a hex address", c.ContractAddress))
	}
	if c.ChainID <= 0 {
		errs = append(errs, fmt.Errorf("CHAIN_ID must be positive, got %d", c.ChainID))
	}
	if c.GenericImageURI == "" {
		errs = append(errs, errors.New("GENERIC_IMAGE_URI is required"))
	}
	if c.ConfirmationPollInterval <= 0 || c.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("CONFIRMATION_TIMEOUT and CONFIRMATION_POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) ChainIDBig() *big.Int {
	return big.NewInt(c.ChainID)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go durations ("30s", "5m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
