package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags
// plus the cross-field rules that tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return err
	}

	// The gpt backend cannot work without a key; fail at startup rather
	// than on the first AI_MESSAGE.
	if cfg.AI.Mode == "gpt" && cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.mode is gpt (set OPENAI_API_KEY)")
	}

	if err := cfg.Database.ToStoreConfig().Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	return nil
}
