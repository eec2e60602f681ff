package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/viper"

	"github.com/bnema/x402-pay-cli/internal/adapters/channel/ws"
	"github.com/bnema/x402-pay-cli/internal/adapters/facilitator"
	"github.com/bnema/x402-pay-cli/internal/adapters/pricing"
	sessionrender "github.com/bnema/x402-pay-cli/internal/adapters/render/session"
	"github.com/bnema/x402-pay-cli/internal/adapters/wallet/bridge"
	"github.com/bnema/x402-pay-cli/internal/adapters/wallet/static"
	"github.com/bnema/x402-pay-cli/internal/application"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

const configDirName = ".xp"

const (
	walletModeBridge = "bridge"
	walletModeStatic = "static"
)

type app struct {
	userID      string
	channelURL  string
	logger      *slog.Logger
	logLevel    *slog.LevelVar
	clock       ports.Clock
	httpClient  *http.Client
	facilitator facilitator.Client
	wallet      ports.Wallet
	prices      ports.PriceBook
	renderer    func(application.Snapshot, sessionrender.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	config := viper.New()
	setConfigDefaults(config)

	config.SetEnvPrefix("XP")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := readConfigFile(config); err != nil {
		return nil, err
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLogLevel(config.GetString("log.level")))
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))

	clock := ports.SystemClock{}
	httpClient := http.DefaultClient

	prices, err := pricing.NewBook(config)
	if err != nil {
		return nil, fmt.Errorf("wire price book: %w", err)
	}

	wallet, err := buildWallet(config, httpClient, clock)
	if err != nil {
		return nil, err
	}

	return &app{
		userID:     config.GetString("user.id"),
		channelURL: config.GetString("channel.url"),
		logger:     logger,
		logLevel:   logLevel,
		clock:      clock,
		httpClient: httpClient,
		facilitator: facilitator.Client{
			BaseURL:    config.GetString("facilitator.base_url"),
			HTTPClient: httpClient,
		},
		wallet:   wallet,
		prices:   prices,
		renderer: sessionrender.Render,
	}, nil
}

// newSession wires a fresh coordinator with its own realtime channel.
// Channels are terminal after Close, so every session gets a new one.
func (a *app) newSession() (*application.Coordinator, error) {
	if strings.TrimSpace(a.userID) == "" {
		return nil, errors.New("user.id is not configured; set it in ~/.xp/config.toml or XP_USER_ID")
	}

	channel, err := ws.New(ws.Config{
		URL:    a.channelURL,
		Clock:  a.clock,
		Logger: a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire realtime channel: %w", err)
	}

	return application.NewCoordinator(channel, a.wallet, a.facilitator, a.clock, a.logger), nil
}

func setConfigDefaults(config *viper.Viper) {
	config.SetDefault("user.id", "")
	config.SetDefault("channel.url", "ws://127.0.0.1:8402/events")
	config.SetDefault("facilitator.base_url", "http://127.0.0.1:8402")
	config.SetDefault("wallet.mode", walletModeBridge)
	config.SetDefault("wallet.bridge_url", "http://127.0.0.1:9402")
	config.SetDefault("wallet.address", "")
	config.SetDefault("wallet.network", "base")
	config.SetDefault("log.level", "warn")
}

// readConfigFile loads ~/.xp/config.toml when present. XP_CONFIG points
// at an explicit file instead; that file must exist.
func readConfigFile(config *viper.Viper) error {
	if configFile := os.Getenv("XP_CONFIG"); configFile != "" {
		config.SetConfigFile(configFile)
		if err := config.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", configFile, err)
		}
		return nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	config.SetConfigName("config")
	config.SetConfigType("toml")
	config.AddConfigPath(filepath.Join(homeDir, configDirName))

	if err := config.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return nil
}

func buildWallet(config *viper.Viper, httpClient *http.Client, clock ports.Clock) (ports.Wallet, error) {
	switch mode := config.GetString("wallet.mode"); mode {
	case walletModeBridge:
		return bridge.Signer{
			BaseURL:    config.GetString("wallet.bridge_url"),
			HTTPClient: httpClient,
		}, nil
	case walletModeStatic:
		return static.Wallet{
			Address: config.GetString("wallet.address"),
			Network: config.GetString("wallet.network"),
			Clock:   clock,
		}, nil
	default:
		return nil, fmt.Errorf("unknown wallet.mode %q (want %q or %q)", mode, walletModeBridge, walletModeStatic)
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
