// Package config loads and validates bamf-monitor settings.
//
// Settings come from built-in defaults, an optional YAML file, the process
// environment and finally command-line flags, each layer overriding the one
// before it. Validate runs once at startup so a misconfigured run fails before
// any network access.
package config

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pfrederiksen/bamf-monitor/internal/exam"
	"github.com/pfrederiksen/bamf-monitor/internal/notifier"
	"github.com/pfrederiksen/bamf-monitor/internal/scraper"
	"github.com/pfrederiksen/bamf-monitor/internal/storage"
	"sigs.k8s.io/yaml"
)

// Environment variables read by FromEnv.
const (
	EnvSender        = "EMAIL_USER"
	EnvPassword      = "EMAIL_PASS"
	EnvRecipient     = "EMAIL_RECEIVER"
	EnvRecipientName = "EMAIL_RECEIVER_NAME"
	EnvSMTPHost      = "SMTP_HOST"
	EnvSMTPPort      = "SMTP_PORT"
)

// DefaultTargetDate is the exam date being waited for.
const DefaultTargetDate = "04.02.2026"

// Config holds all runtime settings.
type Config struct {
	URL                  string    `json:"url"`
	TargetDate           string    `json:"target_date"`
	TerminationAfterDays int       `json:"termination_after_days"`
	StateFile            string    `json:"state_file"`
	MetricsFile          string    `json:"metrics_file,omitempty"`
	Strict               bool      `json:"strict,omitempty"`
	Fetch                Fetch     `json:"fetch"`
	SMTP                 SMTP      `json:"smtp"`
	Log                  LogConfig `json:"log"`
}

// Fetch configures the page fetcher.
type Fetch struct {
	Attempts   int      `json:"attempts"`
	RetryDelay Duration `json:"retry_delay"`
	Timeout    Duration `json:"timeout"`
}

// SMTP configures mail submission. Credentials are only read from the
// environment.
type SMTP struct {
	Host          string   `json:"host"`
	Port          int      `json:"port"`
	Sender        string   `json:"-"`
	Password      string   `json:"-"`
	Recipient     string   `json:"-"`
	RecipientName string   `json:"recipient_name,omitempty"`
	Timeout       Duration `json:"timeout"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		URL:                  scraper.PageURL,
		TargetDate:           DefaultTargetDate,
		TerminationAfterDays: 14,
		StateFile:            storage.DefaultPath,
		Fetch: Fetch{
			Attempts:   scraper.DefaultRetryPolicy.MaxAttempts,
			RetryDelay: Duration(scraper.DefaultRetryPolicy.Delay),
			Timeout:    Duration(scraper.Timeout),
		},
		SMTP: SMTP{
			Host:    notifier.DefaultSMTPHost,
			Port:    notifier.DefaultSMTPPort,
			Timeout: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (if any) and the
// environment as seen through lookup (os.LookupEnv in production).
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.FromEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML (or JSON) file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// FromEnv overlays environment variables onto c.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSender); ok {
		c.SMTP.Sender = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPassword); ok {
		c.SMTP.Password = v
	}
	if v, ok := lookup(EnvRecipient); ok {
		c.SMTP.Recipient = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvRecipientName); ok {
		c.SMTP.RecipientName = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSMTPHost); ok && v != "" {
		c.SMTP.Host = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvSMTPPort); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Problems: []string{fmt.Sprintf("%s: not a number: %q", EnvSMTPPort, v)}}
		}
		c.SMTP.Port = port
	}
	return nil
}

// Validate checks c. Credentials are only required when requireCredentials is
// set (they are not needed for dry runs or the status command).
func (c *Config) Validate(requireCredentials bool) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if u, err := url.Parse(c.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("url: must be an absolute http(s) URL, got %q", c.URL)
	}
	if _, err := exam.ParseDate(c.TargetDate); err != nil {
		add("target_date: %v", err)
	}
	if c.TerminationAfterDays < 0 {
		add("termination_after_days: must not be negative")
	}
	if c.StateFile == "" {
		add("state_file: must not be empty")
	}
	if c.Fetch.Attempts < 1 {
		add("fetch.attempts: must be at least 1")
	}
	if c.Fetch.RetryDelay < 0 {
		add("fetch.retry_delay: must not be negative")
	}
	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout: must be positive")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		add("smtp.port: out of range: %d", c.SMTP.Port)
	}

	if requireCredentials {
		var missing []string
		if c.SMTP.Sender == "" {
			missing = append(missing, EnvSender)
		}
		if c.SMTP.Password == "" {
			missing = append(missing, EnvPassword)
		}
		if c.SMTP.Recipient == "" {
			missing = append(missing, EnvRecipient)
		}
		if len(missing) > 0 {
			add("missing required environment variables: %s", strings.Join(missing, ", "))
		}
		if c.SMTP.Sender != "" {
			if _, err := mail.ParseAddress(c.SMTP.Sender); err != nil {
				add("%s: invalid address %q", EnvSender, c.SMTP.Sender)
			}
		}
		if c.SMTP.Recipient != "" {
			if _, err := mail.ParseAddress(c.SMTP.Recipient); err != nil {
				add("%s: invalid address %q", EnvRecipient, c.SMTP.Recipient)
			}
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// Rules returns the notification rules.
func (c *Config) Rules() exam.Rules {
	return exam.Rules{
		TargetDate:           c.TargetDate,
		TerminationAfterDays: c.TerminationAfterDays,
	}
}

// RetryPolicy returns the fetch retry policy.
func (c *Config) RetryPolicy() scraper.RetryPolicy {
	return scraper.RetryPolicy{
		MaxAttempts: c.Fetch.Attempts,
		Delay:       time.Duration(c.Fetch.RetryDelay),
	}
}

// SMTPConfig returns the notifier settings. The sender address doubles as the
// SMTP username.
func (c *Config) SMTPConfig() notifier.SMTPConfig {
	return notifier.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Sender,
		Password: c.SMTP.Password,
		From:     c.SMTP.Sender,
		To:       c.SMTP.Recipient,
		Timeout:  time.Duration(c.SMTP.Timeout),
	}
}

// Error lists everything wrong with a configuration.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}
