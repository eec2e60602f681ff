package pricing

import "fmt"

const currentSchemaVersion = 1

const defaultRequirementTTLSeconds = 300

type fileSchema struct {
	Version  int                  `toml:"version"`
	Defaults defaultsSchema       `toml:"defaults"`
	Tools    map[string]ToolPrice `toml:"tools"`
}

type defaultsSchema struct {
	Currency string `toml:"currency"`
	Network  string `toml:"network"`
	PayTo    string `toml:"pay_to"`
	// TTLSeconds is how far into the future synthesized requirements
	// expire.
	TTLSeconds int `toml:"ttl_seconds"`
}

// ToolPrice is one price book entry. Empty fields fall back to the
// defaults block.
type ToolPrice struct {
	Amount   string `toml:"amount"`
	Currency string `toml:"currency,omitempty"`
	Network  string `toml:"network,omitempty"`
	PayTo    string `toml:"pay_to,omitempty"`
	Memo     string `toml:"memo,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
	if s.Defaults.Currency == "" {
		s.Defaults.Currency = "USDC"
	}
	if s.Defaults.Network == "" {
		s.Defaults.Network = "base"
	}
	if s.Defaults.TTLSeconds <= 0 {
		s.Defaults.TTLSeconds = defaultRequirementTTLSeconds
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported price book schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}
