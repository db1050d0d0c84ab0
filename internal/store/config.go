package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"gopkg.in/yaml.v3"
)

type Config struct {
	PollSeconds       int    `yaml:"poll_seconds"`
	RunTimeoutSeconds int    `yaml:"run_timeout_seconds"`
	RunImmediately    *bool  `yaml:"run_immediately"`
	Concurrency       int    `yaml:"concurrency"`
	BaseCurrency      string `yaml:"base_currency"`

	Workspace struct {
		Token          string `yaml:"token,omitempty"`
		HoldingsDB     string `yaml:"holdings_db"`
		TransactionsDB string `yaml:"transactions_db"`
		PageSize       int    `yaml:"page_size"`
		Properties     struct {
			Ticker   string `yaml:"ticker"`
			Type     string `yaml:"type"`
			Currency string `yaml:"currency"`
			ETF      string `yaml:"etf"`
			Country  string `yaml:"country"`
			Scope    string `yaml:"scope"`
			Quantity string `yaml:"quantity"`
		} `yaml:"properties"`
	} `yaml:"workspace"`

	Market struct {
		BaseURL           string  `yaml:"base_url"`
		Token             string  `yaml:"token,omitempty"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		FIGICacheDir      string  `yaml:"figi_cache_dir"`
		FIGICacheTTLHours int     `yaml:"figi_cache_ttl_hours"`
	} `yaml:"market"`

	FX struct {
		BaseURL           string  `yaml:"base_url"`
		AccessKey         string  `yaml:"access_key"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
	} `yaml:"fx"`

	Sheet SheetConfig `yaml:"sheet"`

	// Flat keys of the old config.yml layout, still accepted.
	LegacyToken    string `yaml:"token,omitempty"`
	LegacyStocks   string `yaml:"stocks,omitempty"`
	LegacyFlow     string `yaml:"flow,omitempty"`
	LegacyAPIToken string `yaml:"api_token,omitempty"`
}

type SheetConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Name            string `yaml:"name"`
	Worksheet       string `yaml:"worksheet"`
}

// UnmarshalYAML also accepts the old flat form `sheet: <spreadsheet name>`.
func (s *SheetConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Name = value.Value
		return nil
	}
	type plain SheetConfig
	return value.Decode((*plain)(s))
}

// Interval is the pause between two sync runs.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// RunTimeout bounds a single sync run.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func (c *Config) Validate() error {
	var errs []error
	if c.PollSeconds <= 0 {
		errs = append(errs, fmt.Errorf("poll_seconds must be positive, got %d", c.PollSeconds))
	}
	if c.RunTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("run_timeout_seconds must not be negative, got %d", c.RunTimeoutSeconds))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if money.GetCurrency(c.BaseCurrency) == nil {
		errs = append(errs, fmt.Errorf("base_currency must be an ISO 4217 code, got '%s'", c.BaseCurrency))
	}
	if c.Workspace.Token == "" {
		errs = append(errs, errors.New("workspace.token is required (or NOTION_TOKEN)"))
	}
	if c.Workspace.HoldingsDB == "" {
		errs = append(errs, errors.New("workspace.holdings_db is required"))
	}
	if c.Workspace.TransactionsDB == "" {
		errs = append(errs, errors.New("workspace.transactions_db is required"))
	}
	if c.Market.Token == "" {
		errs = append(errs, errors.New("market.token is required (or TINKOFF_TOKEN)"))
	}
	if c.Sheet.SpreadsheetID == "" && c.Sheet.Name == "" {
		errs = append(errs, errors.New("sheet.spreadsheet_id or sheet.name is required"))
	}
	return errors.Join(errs...)
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// Parse decodes YAML and fills defaults; it does not validate.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyLegacy()
	c.applyDefaults()
	return &c, nil
}

// ApplyEnv lets secrets come from the environment instead of the file.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("NOTION_TOKEN"); v != "" {
		c.Workspace.Token = v
	}
	if v := getenv("TINKOFF_TOKEN"); v != "" {
		c.Market.Token = v
	}
	if v := getenv("FX_ACCESS_KEY"); v != "" {
		c.FX.AccessKey = v
	}
	if v := getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		c.Sheet.CredentialsFile = v
	}
}

func (c *Config) applyLegacy() {
	if c.Workspace.Token == "" {
		c.Workspace.Token = c.LegacyToken
	}
	if c.Workspace.HoldingsDB == "" {
		c.Workspace.HoldingsDB = c.LegacyStocks
	}
	if c.Workspace.TransactionsDB == "" {
		c.Workspace.TransactionsDB = c.LegacyFlow
	}
	if c.Market.Token == "" {
		c.Market.Token = c.LegacyAPIToken
	}
}

func (c *Config) applyDefaults() {
	if c.PollSeconds == 0 {
		c.PollSeconds = 30
	}
	if c.RunTimeoutSeconds == 0 {
		c.RunTimeoutSeconds = 120
	}
	if c.RunImmediately == nil {
		yes := true
		c.RunImmediately = &yes
	}
	if c.Concurrency == 0 {
		c.Concurrency = 1
	}
	if c.BaseCurrency == "" {
		c.BaseCurrency = "RUB"
	}
	c.BaseCurrency = strings.ToUpper(c.BaseCurrency)

	p := &c.Workspace.Properties
	setDefault(&p.Ticker, "ticker")
	setDefault(&p.Type, "type")
	setDefault(&p.Currency, "currency")
	setDefault(&p.ETF, "etf")
	setDefault(&p.Country, "country")
	setDefault(&p.Scope, "scope")
	setDefault(&p.Quantity, "quantity")
	if c.Workspace.PageSize == 0 {
		c.Workspace.PageSize = 100
	}

	setDefault(&c.Market.BaseURL, "https://api-invest.tinkoff.ru/openapi")
	if c.Market.RequestsPerSecond == 0 {
		c.Market.RequestsPerSecond = 4
	}
	if c.Market.TimeoutSeconds == 0 {
		c.Market.TimeoutSeconds = 15
	}
	if c.Market.FIGICacheTTLHours == 0 {
		c.Market.FIGICacheTTLHours = 24
	}

	setDefault(&c.FX.BaseURL, "https://api.exchangeratesapi.io")
	if c.FX.RequestsPerSecond == 0 {
		c.FX.RequestsPerSecond = 2
	}
	if c.FX.TimeoutSeconds == 0 {
		c.FX.TimeoutSeconds = 15
	}

	setDefault(&c.Sheet.CredentialsFile, "google-app-config.json")
	setDefault(&c.Sheet.Worksheet, "raw")
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Masked returns a copy safe to print.
func (c Config) Masked() Config {
	c.Workspace.Token = mask(c.Workspace.Token)
	c.Market.Token = mask(c.Market.Token)
	c.FX.AccessKey = mask(c.FX.AccessKey)
	c.LegacyToken = mask(c.LegacyToken)
	c.LegacyAPIToken = mask(c.LegacyAPIToken)
	return c
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
