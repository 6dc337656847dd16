package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// OCR provider names.
const (
	ProviderMock      = "mock"
	ProviderHTTP      = "http"
	ProviderVision    = "vision"
	ProviderAnthropic = "anthropic"
	ProviderPDFText   = "pdftext"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	OCR      OCRConfig
	Parsing  ParsingConfig
	AI       AIConfig
	WhatsApp WhatsAppConfig
	Sheets   SheetsConfig
	MongoDB  MongoDBConfig
	Inbox    InboxConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// OCRConfig selects and configures the text extraction backend.
type OCRConfig struct {
	Provider     string
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	StrictFormat bool
	MockSample   string
	MockDelay    time.Duration
}

// ParsingConfig holds line parser defaults.
type ParsingConfig struct {
	Dialect      string
	DialectsFile string
	CowRate      float64
}

// AIConfig holds settings for LLM providers.
type AIConfig struct {
	AnthropicKey   string
	AnthropicModel string
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	VerifyToken     string
	BaseURL         string
	APIVersion      string
	DefaultMilkType string
}

// Enabled reports whether the WhatsApp intake channel is configured.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != ""
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SheetRange      string
}

// Enabled reports whether the spreadsheet export sink is configured.
func (s SheetsConfig) Enabled() bool {
	return s.SpreadsheetID != ""
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// Enabled reports whether the archive export sink is configured.
func (m MongoDBConfig) Enabled() bool {
	return m.URI != ""
}

// InboxConfig holds the drop-folder ingest settings.
type InboxConfig struct {
	Dir          string
	OutDir       string
	CronSchedule string
	MilkType     string
	Dialect      string
	Sinks        []string
	NotifyTo     string
}

// Enabled reports whether scheduled ingest is configured.
func (i InboxConfig) Enabled() bool {
	return i.Dir != ""
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	ocrTimeout, err := getenvDuration("OCR_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	mockDelay, err := getenvDuration("OCR_MOCK_DELAY", 0)
	if err != nil {
		return nil, err
	}
	strict, err := getenvBool("OCR_STRICT_FORMAT", false)
	if err != nil {
		return nil, err
	}
	cowRate, err := getenvFloat("COW_RATE_PER_LITER", 32)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		OCR: OCRConfig{
			Provider:     strings.ToLower(getenvWithDefault("OCR_PROVIDER", ProviderMock)),
			Endpoint:     os.Getenv("OCR_ENDPOINT"),
			APIKey:       os.Getenv("OCR_API_KEY"),
			Timeout:      ocrTimeout,
			StrictFormat: strict,
			MockSample:   getenvWithDefault("OCR_MOCK_SAMPLE", "log"),
			MockDelay:    mockDelay,
		},
		Parsing: ParsingConfig{
			Dialect:      getenvWithDefault("PARSER_DIALECT", "log"),
			DialectsFile: os.Getenv("PARSER_DIALECTS_FILE"),
			CowRate:      cowRate,
		},
		AI: AIConfig{
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel: os.Getenv("ANTHROPIC_MODEL"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			VerifyToken:     os.Getenv("META_VERIFY_TOKEN"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			DefaultMilkType: getenvWithDefault("WHATSAPP_DEFAULT_MILK_TYPE", "both"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			SheetRange:      getenvWithDefault("GOOGLE_SHEET_RANGE", "Entries!A:L"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "milklog"),
		},
		Inbox: InboxConfig{
			Dir:          os.Getenv("INBOX_DIR"),
			OutDir:       os.Getenv("OUTBOX_DIR"),
			CronSchedule: getenvWithDefault("INBOX_CRON_SCHEDULE", "*/5 * * * *"),
			MilkType:     getenvWithDefault("INBOX_MILK_TYPE", "both"),
			Dialect:      os.Getenv("INBOX_DIALECT"),
			Sinks:        getenvList("INBOX_EXPORT_SINKS"),
			NotifyTo:     os.Getenv("INBOX_NOTIFY_TO"),
		},
		Log: LogConfig{
			Level: getenvWithDefault("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch c.OCR.Provider {
	case ProviderMock, ProviderVision, ProviderPDFText:
	case ProviderHTTP:
		if c.OCR.Endpoint == "" {
			return errors.New("OCR_ENDPOINT must be provided for the http OCR provider")
		}
	case ProviderAnthropic:
		if c.AI.AnthropicKey == "" {
			return errors.New("ANTHROPIC_API_KEY must be provided for the anthropic OCR provider")
		}
	default:
		return fmt.Errorf("OCR_PROVIDER %q is not supported", c.OCR.Provider)
	}

	if c.OCR.Timeout <= 0 {
		return errors.New("OCR_TIMEOUT must be positive")
	}

	if c.Parsing.Dialect == "" {
		return errors.New("PARSER_DIALECT must not be empty")
	}
	if !(c.Parsing.CowRate > 0) || math.IsInf(c.Parsing.CowRate, 0) {
		return errors.New("COW_RATE_PER_LITER must be a finite number greater than zero")
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.VerifyToken == "":
			return errors.New("META_VERIFY_TOKEN must be provided")
		case c.WhatsApp.BaseURL == "":
			return errors.New("WHATSAPP_BASE_URL must not be empty")
		case c.WhatsApp.APIVersion == "":
			return errors.New("WHATSAPP_API_VERSION must not be empty")
		}
	}

	if c.Sheets.Enabled() && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided")
	}

	if c.MongoDB.Enabled() && c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must not be empty")
	}

	if c.Inbox.Enabled() {
		if c.Inbox.OutDir == "" {
			return errors.New("OUTBOX_DIR must be provided when INBOX_DIR is set")
		}
		if c.Inbox.CronSchedule == "" {
			return errors.New("INBOX_CRON_SCHEDULE must be provided")
		}
		if c.Inbox.NotifyTo != "" && !c.WhatsApp.Enabled() {
			return errors.New("INBOX_NOTIFY_TO requires WHATSAPP_TOKEN")
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
