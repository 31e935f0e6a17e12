package config

type Config struct {
	Logging LoggingConfig `json:"logging"`

	// Feed points at the announcement origin. The base URL is fixed at load
	// time and never taken from remote input.
	Feed FeedConfig `json:"feed"`

	// Trust names the bundled trust material and the expected publisher
	// identity. The root certificate is the single pinned anchor.
	Trust TrustConfig `json:"trust"`

	Settings     SettingsConfig     `json:"settings"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Connectivity ConnectivityConfig `json:"connectivity,omitempty"`

	// Telegram enables the Telegram delivery sink. If omitted, notifications
	// are rendered to the log only.
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	Directory DirectoryConfig `json:"directory"`
	Notifier  NotifierConfig  `json:"notifier,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type FeedConfig struct {
	// BaseURL is joined with fixed resource names (".signature", ".rss").
	BaseURL string `json:"base_url"`

	// RequestTimeout is a Go duration string (e.g. "30s"). Applied per request.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type TrustConfig struct {
	// RootCert is the PEM path of the pinned root authority certificate.
	RootCert string `json:"root_cert"`

	// PublisherCert is the PEM path of the bundled publisher leaf certificate.
	PublisherCert string `json:"publisher_cert"`

	// CRLURL is the revocation list endpoint, fetched fresh each run.
	// If empty, RootCRL names a bundled CRL file read at run time instead.
	CRLURL  string `json:"crl_url,omitempty"`
	RootCRL string `json:"root_crl,omitempty"`

	// PublisherCN is the exact Common Name the leaf certificate must carry.
	PublisherCN string `json:"publisher_cn"`
}

// SettingsConfig controls the persisted settings store.
//
// Example:
//
//	"settings": { "driver": "file", "path": "./announced_settings" }
type SettingsConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SchedulerConfig controls the crawl trigger.
//
// Enabled is a pointer so "omitted" defaults to true while an explicit
// false still disables the trigger (useful with -once).
type SchedulerConfig struct {
	Enabled *bool `json:"enabled,omitempty"`

	// Interval between runs, Go duration string. Default "24h".
	Interval string `json:"interval,omitempty"`

	// MaxJitter bounds the random delay added before each run to spread
	// load on the origin across deployments. Default "60m".
	MaxJitter string `json:"max_jitter,omitempty"`
}

// ConnectivityConfig controls the pre-run connectivity gate.
//
// Mode values:
//   - "assume": trust the Online flag (default true), mirroring a
//     host-level "has internet" setting
//   - "probe": one short TCP dial to ProbeAddr per run
type ConnectivityConfig struct {
	Mode         string `json:"mode,omitempty"`
	Online       *bool  `json:"online,omitempty"`
	ProbeAddr    string `json:"probe_addr,omitempty"`
	ProbeTimeout string `json:"probe_timeout,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
}

// DirectoryConfig is the static group directory: group id -> members.
type DirectoryConfig struct {
	Groups map[string][]DirectoryUser `json:"groups"`
}

type DirectoryUser struct {
	UID    string `json:"uid"`
	ChatID int64  `json:"chat_id,omitempty"`
}

type NotifierConfig struct {
	RatePerSec  int `json:"rate_per_sec,omitempty"`
	HistorySize int `json:"history_size,omitempty"`
}
