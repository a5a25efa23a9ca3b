package domain

// ModelType is the integration tier of a bookmaker.
type ModelType string

const (
	// ModelSimple bookmakers only have odds ingested; nothing can be placed.
	ModelSimple ModelType = "simple"
	// ModelAPI bookmakers expose a trading API through an adapter.
	ModelAPI ModelType = "api"
)

// Bookmaker is a betting venue with its own balance and adapter config.
type Bookmaker struct {
	Key       string
	Title     string
	ModelType ModelType
	Balance   float64
	Active    bool
	Config    BookmakerConfig
}

// BookmakerConfig is persisted as JSON alongside the bookmaker row.
type BookmakerConfig struct {
	Plugin string `json:"plugin,omitempty" yaml:"plugin"` // registry name; defaults to the bookmaker key

	APIToken     string `json:"api_token,omitempty" yaml:"api_token"`
	APIKey       string `json:"api_key,omitempty" yaml:"api_key"`
	Username     string `json:"username,omitempty" yaml:"username"`
	Password     string `json:"password,omitempty" yaml:"password"`
	SessionToken string `json:"session_token,omitempty" yaml:"session_token"`

	BaseURL  string `json:"base_url,omitempty" yaml:"base_url"`
	Currency string `json:"currency,omitempty" yaml:"currency"`

	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second"`
	OddsPerSecond     float64 `json:"odds_per_second,omitempty" yaml:"odds_per_second"`

	StartingBalance float64 `json:"starting_balance,omitempty" yaml:"starting_balance"`
	BetDelaySeconds int     `json:"bet_delay_seconds,omitempty" yaml:"bet_delay_seconds"`

	Extra map[string]string `json:"extra,omitempty" yaml:"extra"`
}

// PluginName returns the registry name used to build the adapter.
func (b Bookmaker) PluginName() string {
	if b.Config.Plugin != "" {
		return b.Config.Plugin
	}
	return b.Key
}

// HasCredentials reports whether the config carries enough to authenticate:
// an API token or key, a username and password pair, or a session token.
func (c BookmakerConfig) HasCredentials() bool {
	if c.APIToken != "" || c.APIKey != "" {
		return true
	}
	if c.Username != "" && c.Password != "" {
		return true
	}
	return c.SessionToken != ""
}

// Balance is what an adapter reports for the account.
type Balance struct {
	Amount    float64
	Currency  string
	AccountID string
}
