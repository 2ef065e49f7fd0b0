package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

var ErrConfigExists = errors.New("config file already exists")

const redacted = "<redacted>"

type fileSchema struct {
	API         apiSchema         `toml:"api"`
	Telegram    telegramSchema    `toml:"telegram"`
	Game        gameSchema        `toml:"game"`
	TON         tonSchema         `toml:"ton"`
	Workflow    workflowSchema    `toml:"workflow"`
	Retry       retrySchema       `toml:"retry"`
	Store       storeSchema       `toml:"store"`
	Credentials credentialsSchema `toml:"credentials"`
	Log         logSchema         `toml:"log"`
}

type apiSchema struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout string `toml:"request_timeout"`
}

type telegramSchema struct {
	InitData string `toml:"init_data"`
}

type gameSchema struct {
	StarsCost        int64   `toml:"stars_cost"`
	WinRate          float64 `toml:"win_rate"`
	ScratchThreshold float64 `toml:"scratch_threshold"`
}

type tonSchema struct {
	Network           string `toml:"network"`
	CollectionAddress string `toml:"collection_address"`
	MintAmount        int64  `toml:"mint_amount"`
	ExplorerURL       string `toml:"explorer_url"`
}

type workflowSchema struct {
	PollInterval   string `toml:"poll_interval"`
	InvoiceTimeout string `toml:"invoice_timeout"`
	PaymentTimeout string `toml:"payment_timeout"`
	ResultTimeout  string `toml:"result_timeout"`
	MintTimeout    string `toml:"mint_timeout"`
	SessionMaxAge  string `toml:"session_max_age"`
}

type retrySchema struct {
	MaxAttempts int    `toml:"max_attempts"`
	BaseDelay   string `toml:"base_delay"`
}

type storeSchema struct {
	Backend   string `toml:"backend"`
	Path      string `toml:"path"`
	RedisAddr string `toml:"redis_addr"`
	Key       string `toml:"key"`
}

type credentialsSchema struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
}

type logSchema struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Path is where Load looks for the config file unless GS_CONFIG_FILE is set.
func Path(homeDir string) string {
	if file := os.Getenv(envPrefix + "_CONFIG_FILE"); file != "" {
		return file
	}
	return filepath.Join(homeDir, configDir, configName+"."+configType)
}

// Marshal renders cfg in the config file format. The Telegram init data is
// replaced unless includeSecrets is set.
func Marshal(cfg Config, includeSecrets bool) ([]byte, error) {
	file := toSchema(cfg)
	if !includeSecrets && file.Telegram.InitData != "" {
		file.Telegram.InitData = redacted
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Write stores cfg at path with owner-only permissions. An existing file is
// kept unless overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat config file: %w", err)
		}
	}

	data, err := Marshal(cfg, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func toSchema(cfg Config) fileSchema {
	return fileSchema{
		API: apiSchema{
			BaseURL:        cfg.API.BaseURL,
			RequestTimeout: cfg.API.RequestTimeout.String(),
		},
		Telegram: telegramSchema{InitData: cfg.Telegram.InitData},
		Game: gameSchema{
			StarsCost:        cfg.Game.StarsCost,
			WinRate:          cfg.Game.WinRate,
			ScratchThreshold: cfg.Game.ScratchThreshold,
		},
		TON: tonSchema{
			Network:           cfg.TON.Network,
			CollectionAddress: cfg.TON.CollectionAddress,
			MintAmount:        cfg.Game.MintAmountNano,
			ExplorerURL:       cfg.TON.ExplorerURL,
		},
		Workflow: workflowSchema{
			PollInterval:   cfg.Workflow.PollInterval.String(),
			InvoiceTimeout: cfg.Workflow.InvoiceTimeout.String(),
			PaymentTimeout: cfg.Workflow.PaymentTimeout.String(),
			ResultTimeout:  cfg.Workflow.ResultTimeout.String(),
			MintTimeout:    cfg.Workflow.MintTimeout.String(),
			SessionMaxAge:  cfg.Workflow.SessionMaxAge.String(),
		},
		Retry: retrySchema{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay.String(),
		},
		Store: storeSchema{
			Backend:   cfg.Store.Backend,
			Path:      cfg.Store.Path,
			RedisAddr: cfg.Store.RedisAddr,
			Key:       cfg.Store.Key,
		},
		Credentials: credentialsSchema{
			Backend: cfg.Credentials.Backend,
			Dir:     cfg.Credentials.Dir,
		},
		Log: logSchema{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
		},
	}
}
