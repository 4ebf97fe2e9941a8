package config

import (
	"strings"
	"time"

	"github.com/unkn0wn-root/apidebug/internal/util"
)

const (
	DefaultDebugHeader    = "X-Debug-Session-Id"
	DefaultTimeout        = "30s"
	DefaultMaxLines       = 1000
	MaxLinesCeiling       = 100000
	DefaultPollInterval   = "1s"
	DefaultHistoryEntries = 200
	DefaultLogLevel       = "info"
)

type LogsSettings struct {
	MaxLines     int    `json:"max_lines"     toml:"max_lines"`
	DisableLinks bool   `json:"disable_links" toml:"disable_links"`
	UseClasses   bool   `json:"use_classes"   toml:"use_classes"`
	PollURL      string `json:"poll_url"      toml:"poll_url"`
	PushURL      string `json:"push_url"      toml:"push_url"`
	PollInterval string `json:"poll_interval" toml:"poll_interval"`
}

type LogSettings struct {
	Level   string   `json:"level"   toml:"level"`
	Writers []string `json:"writers" toml:"writers"`
	File    string   `json:"file"    toml:"file"`
}

type HistorySettings struct {
	Disabled   bool `json:"disabled"    toml:"disabled"`
	MaxEntries int  `json:"max_entries" toml:"max_entries"`
}

func DefaultSettings() Settings {
	return NormaliseSettings(Settings{})
}

// NormaliseSettings fills zero values and clamps out-of-range numbers.
func NormaliseSettings(s Settings) Settings {
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	if strings.TrimSpace(s.DebugHeader) == "" {
		s.DebugHeader = DefaultDebugHeader
	}
	if _, err := time.ParseDuration(s.Timeout); err != nil {
		s.Timeout = DefaultTimeout
	}

	if s.Logs.MaxLines <= 0 {
		s.Logs.MaxLines = DefaultMaxLines
	}
	if s.Logs.MaxLines > MaxLinesCeiling {
		s.Logs.MaxLines = MaxLinesCeiling
	}
	if d, err := time.ParseDuration(s.Logs.PollInterval); err != nil || d <= 0 {
		s.Logs.PollInterval = DefaultPollInterval
	}

	switch strings.ToLower(strings.TrimSpace(s.Log.Level)) {
	case "debug", "info", "warn", "error":
		s.Log.Level = strings.ToLower(strings.TrimSpace(s.Log.Level))
	default:
		s.Log.Level = DefaultLogLevel
	}
	s.Log.Writers = util.DedupeNonEmptyStrings(s.Log.Writers)
	if len(s.Log.Writers) == 0 {
		s.Log.Writers = []string{"file"}
	}
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = LogPath()
	}

	if s.History.MaxEntries <= 0 {
		s.History.MaxEntries = DefaultHistoryEntries
	}
	return s
}

func (s Settings) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

func (s LogsSettings) PollEvery() time.Duration {
	d, err := time.ParseDuration(s.PollInterval)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultPollInterval)
	}
	return d
}
