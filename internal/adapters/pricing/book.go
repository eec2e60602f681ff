package pricing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/bnema/x402-pay-cli/internal/domain"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

const (
	configName     = "config"
	configType     = "toml"
	pricesPathKey  = "prices.path"
	pricesFileName = "prices.toml"
	configDirName  = ".xp"
)

// ErrToolNotPriced reports a tool the price book does not know.
var ErrToolNotPriced = errors.New("tool not in price book")

// Book is the local tool price table. It synthesizes payment
// requirements for known tools without waiting for a backend demand.
// The file is read once at construction; the book is read-only after.
type Book struct {
	path     string
	defaults defaultsSchema
	tools    map[string]ToolPrice
}

var _ ports.PriceBook = (*Book)(nil)

func NewBook(cfg *viper.Viper) (*Book, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, configDirName, pricesFileName)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, configDirName))
	cfg.SetDefault(pricesPathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	pricesPath := cfg.GetString(pricesPathKey)
	if pricesPath == "" {
		return nil, errors.New("prices path is empty")
	}
	pricesPath, err = normalizePricesPath(pricesPath)
	if err != nil {
		return nil, err
	}

	file, err := readSchema(pricesPath)
	if err != nil {
		return nil, err
	}

	return &Book{
		path:     pricesPath,
		defaults: file.Defaults,
		tools:    file.Tools,
	}, nil
}

// Tools lists the priced tool names, sorted.
func (b *Book) Tools() []string {
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Price returns the raw book entry for a tool, with the defaults block
// folded in.
func (b *Book) Price(tool string) (ToolPrice, error) {
	entry, ok := b.tools[tool]
	if !ok {
		return ToolPrice{}, fmt.Errorf("%w: %q", ErrToolNotPriced, tool)
	}

	if entry.Currency == "" {
		entry.Currency = b.defaults.Currency
	}
	if entry.Network == "" {
		entry.Network = b.defaults.Network
	}
	if entry.PayTo == "" {
		entry.PayTo = b.defaults.PayTo
	}

	return entry, nil
}

// Requirement synthesizes a payment requirement for a priced tool. The
// expiry is now plus the book's TTL, so the demand is strictly in the
// future at creation time.
func (b *Book) Requirement(tool string, now time.Time) (domain.PaymentRequirement, error) {
	entry, err := b.Price(tool)
	if err != nil {
		return domain.PaymentRequirement{}, err
	}

	amount, err := decimal.NewFromString(entry.Amount)
	if err != nil {
		return domain.PaymentRequirement{}, fmt.Errorf("parse price for %q: %w", tool, err)
	}

	req := domain.PaymentRequirement{
		Amount:    amount,
		Currency:  entry.Currency,
		Network:   entry.Network,
		Address:   entry.PayTo,
		Resource:  tool,
		Memo:      entry.Memo,
		ExpiresAt: now.Add(time.Duration(b.defaults.TTLSeconds) * time.Second),
	}
	if err := req.Validate(now); err != nil {
		return domain.PaymentRequirement{}, fmt.Errorf("price book entry for %q: %w", tool, err)
	}

	return req, nil
}

func readSchema(path string) (fileSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			var empty fileSchema
			empty.applyDefaults()
			return empty, nil
		}
		return fileSchema{}, fmt.Errorf("read price book: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode price book: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizePricesPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve prices path: %w", err)
	}

	return filepath.Clean(absPath), nil
}
