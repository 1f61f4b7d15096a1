// Package config provides configuration loading, validation, and management for the orchestrator.
package config

import (
	"fmt"
)

// Model represents an LLM model with its capabilities and limits.
type Model struct {
	Name           string  `json:"name"`            // e.g. "claude-sonnet-4-20250514"
	MaxTPM         int     `json:"max_tpm"`         // tokens per minute
	MaxConnections int     `json:"max_connections"` // max concurrent connections
	CPM            float64 `json:"cpm"`             // cost per million tokens (USD)
	DailyBudget    float64 `json:"daily_budget"`    // max spend per day (USD)
}

// ModelDefaults defines default parameters for all supported models.
//
//nolint:gochecknoglobals // Intentional global for model definitions
var ModelDefaults = map[string]Model{
	ModelClaudeSonnet3: {
		Name:           ModelClaudeSonnet3,
		MaxTPM:         300000,
		MaxConnections: 5,
		CPM:            3.0,
		DailyBudget:    10.0,
	},
	ModelClaudeSonnet4: {
		Name:           ModelClaudeSonnet4,
		MaxTPM:         3000000,
		MaxConnections: 5,
		CPM:            3.0,
		DailyBudget:    10.0,
	},
	ModelOpenAIO3Mini: {
		Name:           ModelOpenAIO3Mini,
		MaxTPM:         100000,
		MaxConnections: 3,
		CPM:            0.6,
		DailyBudget:    5.0,
	},
	ModelOpenAIO3: {
		Name:           ModelOpenAIO3,
		MaxTPM:         100000,
		MaxConnections: 3,
		CPM:            0.6,
		DailyBudget:    5.0,
	},
	ModelGPT5: {
		Name:           ModelGPT5,
		MaxTPM:         150000,
		MaxConnections: 5,
		CPM:            30.0,
		DailyBudget:    100.0,
	},
}

// ModelProviders maps each model to its API provider.
//
//nolint:gochecknoglobals // Intentional global for model-to-provider mapping
var ModelProviders = map[string]string{
	ModelClaudeSonnet3: ProviderAnthropic,
	ModelClaudeSonnet4: ProviderAnthropic,
	ModelOpenAIO3:      ProviderOpenAI,
	ModelOpenAIO3Mini:  ProviderOpenAIOfficial,
	ModelGPT5:          ProviderOpenAIOfficial,
}

// IsModelSupported checks if we have defaults for this model.
func IsModelSupported(modelName string) bool {
	_, exists := ModelDefaults[modelName]
	return exists
}

// GetModelProvider returns the API provider for a given model.
func GetModelProvider(modelName string) (string, error) {
	provider, exists := ModelProviders[modelName]
	if !exists {
		return "", fmt.Errorf("unknown model: %s", modelName)
	}
	return provider, nil
}

// Model name constants.
const (
	ModelClaudeSonnet4      = "claude-sonnet-4-20250514"
	ModelClaudeSonnet3      = "claude-3-7-sonnet-20250219"
	ModelClaudeSonnetLatest = ModelClaudeSonnet4
	ModelOpenAIO3           = "o3"
	ModelOpenAIO3Mini       = "o3-mini"
	ModelOpenAIO3Latest     = ModelOpenAIO3
	ModelGPT5               = "gpt-5"
	DefaultCoderModel       = ModelClaudeSonnet4
	DefaultArchitectModel   = ModelOpenAIO3Mini

	// Provider constants.
	ProviderAnthropic      = "anthropic"
	ProviderOpenAI         = "openai"
	ProviderOpenAIOfficial = "openai_official"
)
