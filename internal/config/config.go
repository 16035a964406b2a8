// Package config resolves runtime settings from defaults, an optional
// YAML file, a .env file and the process environment, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/joelkehle/techtransfer-enrich/internal/assessor"
	"github.com/joelkehle/techtransfer-enrich/internal/classifier"
	"github.com/joelkehle/techtransfer-enrich/internal/report"
	"github.com/joelkehle/techtransfer-enrich/internal/retry"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// FileName is the config file searched for when none is given.
const FileName = "techenrich"

const (
	KeyAnthropicAPIKey = "ANTHROPIC_API_KEY"
	KeyGeminiAPIKey    = "GEMINI_API_KEY"
	KeyProvider        = "LLM_PROVIDER"
	KeyClassifierModel = "CLASSIFIER_MODEL"
	KeyAssessorModel   = "ASSESSOR_MODEL"
	KeyMaxRetries      = "MAX_RETRIES"
	KeyRetryDelay      = "RETRY_DELAY"
	KeyRetryMaxDelay   = "RETRY_MAX_DELAY"
	KeyRetryJitter     = "RETRY_JITTER"
	KeyMaxConcurrent   = "MAX_CONCURRENT_REQUESTS"
	KeyRequestSpacing  = "REQUEST_SPACING"
	KeyLogLevel        = "LOG_LEVEL"
	KeyLogFile         = "LOG_FILE"
	KeyLogFormat       = "LOG_FORMAT"
	KeyOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyPricingFile     = "PRICING_FILE"
	KeyChromePath      = "CHROME_PATH"
	KeyPDFPaper        = "PDF_PAPER"
	KeyPDFLandscape    = "PDF_LANDSCAPE"
	KeyPDFTimeout      = "PDF_TIMEOUT"
)

type Config struct {
	AnthropicAPIKey string
	GeminiAPIKey    string
	Provider        string
	ClassifierModel string
	AssessorModel   string

	MaxRetries     int
	RetryDelay     time.Duration
	RetryMaxDelay  time.Duration
	RetryJitter    bool
	MaxConcurrent  int
	RequestSpacing time.Duration

	LogLevel  string
	LogFile   string
	LogFormat string

	OTLPEndpoint string
	PricingFile  string

	ChromePath   string
	PDFPaper     string
	PDFLandscape bool
	PDFTimeout   time.Duration

	// File is the config file that was read, if any.
	File string
}

// New returns a viper instance carrying every default.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyProvider, ProviderAnthropic)
	v.SetDefault(KeyClassifierModel, classifier.DefaultModel)
	v.SetDefault(KeyAssessorModel, assessor.DefaultModel)
	v.SetDefault(KeyMaxRetries, 3)
	v.SetDefault(KeyRetryDelay, 1.0)
	v.SetDefault(KeyRetryMaxDelay, 60.0)
	v.SetDefault(KeyRetryJitter, true)
	v.SetDefault(KeyMaxConcurrent, 3)
	v.SetDefault(KeyRequestSpacing, "100ms")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyPDFPaper, "letter")
	v.SetDefault(KeyPDFTimeout, report.DefaultPDFTimeout.String())
	return v
}

// Load reads configuration. file may be empty, in which case
// techenrich.yaml is looked up in the working directory and
// $HOME/.config/techenrich; a missing file is not an error. envFiles
// default to .env and never override variables already set.
func Load(v *viper.Viper, file string, envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		AnthropicAPIKey: v.GetString(KeyAnthropicAPIKey),
		GeminiAPIKey:    v.GetString(KeyGeminiAPIKey),
		Provider:        strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		ClassifierModel: v.GetString(KeyClassifierModel),
		AssessorModel:   v.GetString(KeyAssessorModel),
		MaxRetries:      v.GetInt(KeyMaxRetries),
		RetryDelay:      seconds(v.GetFloat64(KeyRetryDelay)),
		RetryMaxDelay:   seconds(v.GetFloat64(KeyRetryMaxDelay)),
		RetryJitter:     v.GetBool(KeyRetryJitter),
		MaxConcurrent:   v.GetInt(KeyMaxConcurrent),
		RequestSpacing:  v.GetDuration(KeyRequestSpacing),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFile:         v.GetString(KeyLogFile),
		LogFormat:       v.GetString(KeyLogFormat),
		OTLPEndpoint:    v.GetString(KeyOTLPEndpoint),
		PricingFile:     v.GetString(KeyPricingFile),
		ChromePath:      v.GetString(KeyChromePath),
		PDFPaper:        v.GetString(KeyPDFPaper),
		PDFLandscape:    v.GetBool(KeyPDFLandscape),
		PDFTimeout:      v.GetDuration(KeyPDFTimeout),
		File:            v.ConfigFileUsed(),
	}
	return cfg, cfg.Validate()
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("%s: unknown provider %q", KeyProvider, c.Provider))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMaxRetries))
	}
	if c.RetryDelay < 0 || c.RetryMaxDelay < 0 {
		errs = append(errs, fmt.Errorf("%s and %s must not be negative", KeyRetryDelay, KeyRetryMaxDelay))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyMaxConcurrent))
	}
	if c.RequestSpacing < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyRequestSpacing))
	}
	if _, err := report.ParsePaper(c.PDFPaper); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyPDFPaper, err))
	}
	if c.PDFTimeout < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyPDFTimeout))
	}
	return errors.Join(errs...)
}

// APIKey returns the credential for the selected provider.
func (c Config) APIKey() (string, error) {
	key, name := c.AnthropicAPIKey, KeyAnthropicAPIKey
	if c.Provider == ProviderGemini {
		key, name = c.GeminiAPIKey, KeyGeminiAPIKey
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return key, nil
}

// PDF returns the renderer options for PDF reports.
func (c Config) PDF() report.PDFOptions {
	paper, _ := report.ParsePaper(c.PDFPaper)
	return report.PDFOptions{
		ChromePath: c.ChromePath,
		Timeout:    c.PDFTimeout,
		Paper:      paper,
		Landscape:  c.PDFLandscape,
	}
}

func (c Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = c.MaxRetries
	p.BaseDelay = c.RetryDelay
	p.MaxDelay = c.RetryMaxDelay
	p.Jitter = c.RetryJitter
	return p
}
