package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".growscratch"
	envPrefix  = "GS"

	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"

	CredentialBackendAuto = "auto"
	CredentialBackendPass = "pass"
	CredentialBackendFile = "file"
)

type Config struct {
	API         APIConfig
	Telegram    TelegramConfig
	Game        domain.GameConfig
	TON         TONConfig
	Workflow    WorkflowConfig
	Retry       RetryConfig
	Store       StoreConfig
	Credentials CredentialsConfig
	Log         LogConfig
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type TelegramConfig struct {
	InitData string
}

type TONConfig struct {
	Network           string
	CollectionAddress string
	ExplorerURL       string
}

type WorkflowConfig struct {
	PollInterval   time.Duration
	InvoiceTimeout time.Duration
	PaymentTimeout time.Duration
	ResultTimeout  time.Duration
	MintTimeout    time.Duration
	SessionMaxAge  time.Duration
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type StoreConfig struct {
	Backend   string
	Path      string
	RedisAddr string
	Key       string
}

// CredentialsConfig selects where gs login keeps the Telegram init data.
type CredentialsConfig struct {
	Backend string
	Dir     string
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadDotEnv loads path into the process environment when it exists.
// Variables already set win over the file.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// Load resolves configuration from defaults, ~/.growscratch/config.toml (or
// GS_CONFIG_FILE) and GS_* environment variables, in increasing priority.
func Load(v *viper.Viper, homeDir string) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v, homeDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv(envPrefix + "_CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(filepath.Join(homeDir, configDir))
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	game := domain.DefaultGameConfig()
	game.StarsCost = v.GetInt64("game.stars_cost")
	game.WinRate = v.GetFloat64("game.win_rate")
	game.ScratchThreshold = v.GetFloat64("game.scratch_threshold")
	game.MintAmountNano = v.GetInt64("ton.mint_amount")

	storePath, err := expandHome(v.GetString("store.path"), homeDir)
	if err != nil {
		return Config{}, err
	}

	credentialsDir, err := expandHome(v.GetString("credentials.dir"), homeDir)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		API: APIConfig{
			BaseURL:        strings.TrimSpace(v.GetString("api.base_url")),
			RequestTimeout: v.GetDuration("api.request_timeout"),
		},
		Telegram: TelegramConfig{InitData: strings.TrimSpace(v.GetString("telegram.init_data"))},
		Game:     game,
		TON: TONConfig{
			Network:           strings.ToLower(v.GetString("ton.network")),
			CollectionAddress: v.GetString("ton.collection_address"),
			ExplorerURL:       strings.TrimRight(v.GetString("ton.explorer_url"), "/"),
		},
		Workflow: WorkflowConfig{
			PollInterval:   v.GetDuration("workflow.poll_interval"),
			InvoiceTimeout: v.GetDuration("workflow.invoice_timeout"),
			PaymentTimeout: v.GetDuration("workflow.payment_timeout"),
			ResultTimeout:  v.GetDuration("workflow.result_timeout"),
			MintTimeout:    v.GetDuration("workflow.mint_timeout"),
			SessionMaxAge:  v.GetDuration("workflow.session_max_age"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("retry.max_attempts"),
			BaseDelay:   v.GetDuration("retry.base_delay"),
		},
		Store: StoreConfig{
			Backend:   strings.ToLower(v.GetString("store.backend")),
			Path:      storePath,
			RedisAddr: v.GetString("store.redis_addr"),
			Key:       v.GetString("store.key"),
		},
		Credentials: CredentialsConfig{
			Backend: strings.ToLower(v.GetString("credentials.backend")),
			Dir:     credentialsDir,
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, homeDir string) {
	v.SetDefault("api.base_url", "https://your-backend.workers.dev")
	v.SetDefault("api.request_timeout", 30*time.Second)
	v.SetDefault("telegram.init_data", "")
	v.SetDefault("game.stars_cost", 25)
	v.SetDefault("game.win_rate", 0.20)
	v.SetDefault("game.scratch_threshold", 0.70)
	v.SetDefault("ton.network", "mainnet")
	v.SetDefault("ton.collection_address", "")
	v.SetDefault("ton.mint_amount", 1_000_000_000)
	v.SetDefault("ton.explorer_url", "https://tonscan.org")
	v.SetDefault("workflow.poll_interval", 2*time.Second)
	v.SetDefault("workflow.invoice_timeout", 30*time.Second)
	v.SetDefault("workflow.payment_timeout", 5*time.Minute)
	v.SetDefault("workflow.result_timeout", 30*time.Second)
	v.SetDefault("workflow.mint_timeout", 2*time.Minute)
	v.SetDefault("workflow.session_max_age", 24*time.Hour)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("store.backend", StoreBackendFile)
	v.SetDefault("store.path", filepath.Join(homeDir, configDir, "session.json"))
	v.SetDefault("store.redis_addr", "127.0.0.1:6379")
	v.SetDefault("store.key", "growscratch:session")
	v.SetDefault("credentials.backend", CredentialBackendAuto)
	v.SetDefault("credentials.dir", filepath.Join(homeDir, configDir, "credentials"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (c Config) Validate() error {
	var errs []error

	if err := validateBaseURL(c.API.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Telegram.InitData != "" {
		if err := ValidateInitData(c.Telegram.InitData); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Game.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := (domain.MintTarget{Network: c.TON.Network}).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ton.network: %w", err))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"api.request_timeout", c.API.RequestTimeout},
		{"workflow.poll_interval", c.Workflow.PollInterval},
		{"workflow.invoice_timeout", c.Workflow.InvoiceTimeout},
		{"workflow.payment_timeout", c.Workflow.PaymentTimeout},
		{"workflow.result_timeout", c.Workflow.ResultTimeout},
		{"workflow.mint_timeout", c.Workflow.MintTimeout},
		{"workflow.session_max_age", c.Workflow.SessionMaxAge},
		{"retry.base_delay", c.Retry.BaseDelay},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}

	switch c.Store.Backend {
	case StoreBackendFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	case StoreBackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported store.backend %q", c.Store.Backend))
	}
	if c.Store.Key == "" {
		errs = append(errs, errors.New("store.key is empty"))
	}

	switch c.Credentials.Backend {
	case CredentialBackendAuto, CredentialBackendFile:
		if c.Credentials.Dir == "" {
			errs = append(errs, errors.New("credentials.dir is required for the file backend"))
		}
	case CredentialBackendPass:
	default:
		errs = append(errs, fmt.Errorf("unsupported credentials.backend %q", c.Credentials.Backend))
	}

	return errors.Join(errs...)
}

// ValidateInitData performs the client-side sanity check on Telegram init
// data. Signature verification happens on the backend.
func ValidateInitData(raw string) error {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("parse telegram init data: %w", err)
	}
	if values.Get("hash") == "" {
		return errors.New("telegram init data has no hash")
	}
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("api.base_url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse api.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("api.base_url must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("api.base_url host is required")
	}
	return nil
}

func expandHome(path, homeDir string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return filepath.Clean(absPath), nil
}
