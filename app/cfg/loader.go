package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./content-hub.db" description:"Path to the SQLite database file"`

	// Application configuration
	FeedsDir    string        `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed preset files (<kind>.yml)"`
	Port        string        `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl     string        `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://hub.example.com)"`
	WorkerCount int           `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers running import batches"`
	RedisAddr   string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the import rate limiter (optional, database is used when empty)"`
	AdminEmail  string        `long:"admin-email" env:"ADMIN_EMAIL" description:"Bootstrap admin account email (optional)"`
	AdminPass   string        `long:"admin-password" env:"ADMIN_PASSWORD" description:"Bootstrap admin account password"`
	SessionTTL  time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"24h" description:"Lifetime of login sessions"`

	// Parse function configuration
	ParseFunctionURL string        `long:"parse-function-url" env:"PARSE_FUNCTION_URL" description:"Remote parse function endpoint (in-process parser is used when empty)"`
	FunctionKey      string        `long:"function-key" env:"FUNCTION_KEY" description:"Key required by the parse function endpoint and sent by the remote client (optional)"`
	ParseTimeout     time.Duration `long:"parse-timeout" env:"PARSE_TIMEOUT" default:"10s" description:"Timeout for fetching a feed"`
	MaxFeedSize      int64         `long:"max-feed-size" env:"MAX_FEED_SIZE" default:"512000" description:"Maximum feed payload size in bytes"`
	MaxItems         int           `long:"max-items" env:"MAX_ITEMS" default:"50" description:"Maximum number of items returned per feed"`
	FetchRetries     int           `long:"fetch-retries" env:"FETCH_RETRIES" default:"1" description:"Retries for transient feed fetch failures"`

	// Import workflow configuration
	ImportCooldown time.Duration `long:"import-cooldown" env:"IMPORT_COOLDOWN" default:"15m" description:"Minimum time between imports of the same feed"`
	ResetDelay     time.Duration `long:"reset-delay" env:"RESET_DELAY" default:"2s" description:"Delay before import progress is cleared"`
	PurgeInterval  time.Duration `long:"purge-interval" env:"PURGE_INTERVAL" default:"1h" description:"Interval between expired session cleanups"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Content Hub Feed Parser/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args. A nil slice
// falls back to the process arguments.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:           raw.DBPath,
		FeedsDir:         raw.FeedsDir,
		Port:             raw.Port,
		BaseUrl:          raw.BaseUrl,
		WorkerCount:      raw.WorkerCount,
		RedisAddr:        raw.RedisAddr,
		AdminEmail:       raw.AdminEmail,
		AdminPass:        raw.AdminPass,
		SessionTTL:       raw.SessionTTL,
		ParseFunctionURL: raw.ParseFunctionURL,
		FunctionKey:      raw.FunctionKey,
		ParseTimeout:     raw.ParseTimeout,
		MaxFeedSize:      raw.MaxFeedSize,
		MaxItems:         raw.MaxItems,
		FetchRetries:     raw.FetchRetries,
		ImportCooldown:   raw.ImportCooldown,
		ResetDelay:       raw.ResetDelay,
		PurgeInterval:    raw.PurgeInterval,
		UserAgent:        raw.UserAgent,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if cfg.MaxItems < 1 {
		return fmt.Errorf("max items must be at least 1")
	}
	if cfg.MaxFeedSize < 1 {
		return fmt.Errorf("max feed size must be positive")
	}
	if cfg.FetchRetries < 0 {
		return fmt.Errorf("fetch retries must be non-negative")
	}
	if cfg.PurgeInterval <= 0 {
		return fmt.Errorf("purge interval must be positive")
	}
	if cfg.AdminEmail != "" && cfg.AdminPass == "" {
		return fmt.Errorf("admin password is required when admin email is set")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
