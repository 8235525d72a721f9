package config

// Default configuration values.
const (
	DefaultLogLevel         = "info"
	DefaultSettleIntervalMs = 2
	DefaultProgramCacheSize = 256
	DefaultPluginsDir       = "plugins"
)

// Config is the demo binary configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"logLevel"`

	// SettleIntervalMs is the engine quiescence window in milliseconds.
	SettleIntervalMs int `json:"settleIntervalMs"`

	// HostURL, when set, attaches to a remote host over WebSocket instead
	// of the in-process JavaScript host.
	HostURL string `json:"hostUrl"`

	// PluginsDir is the directory the in-process host loads .js plugins
	// from.
	PluginsDir string `json:"pluginsDir"`

	// ProgramCacheSize bounds the in-process host's compiled-program cache.
	ProgramCacheSize int `json:"programCacheSize"`
}
