package model

import "time"

// BackendKind selects the protocol an adapter speaks.
type BackendKind string

const (
	// BackendKindChat is an OpenAI-compatible chat-completions endpoint.
	BackendKindChat BackendKind = "chat"
	// BackendKindClaude is the Anthropic Messages API.
	BackendKindClaude BackendKind = "claude"
)

// Backend identifies one model endpoint participating in rounds. The ID is
// the stable identity every score and ledger entry keys on.
type Backend struct {
	ID         string        `json:"id" yaml:"id" mapstructure:"id"`
	Kind       BackendKind   `json:"kind" yaml:"kind" mapstructure:"kind"`
	Model      string        `json:"model" yaml:"model" mapstructure:"model"`
	BaseURL    string        `json:"base_url,omitempty" yaml:"base_url" mapstructure:"base_url"`
	APIKey     string        `json:"-" yaml:"api_key" mapstructure:"api_key"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries,omitempty" yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSec float64       `json:"rate_per_sec,omitempty" yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}
