package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	FeedsDir    string
	Port        string
	BaseUrl     string
	WorkerCount int
	RedisAddr   string
	AdminEmail  string
	AdminPass   string
	SessionTTL  time.Duration

	// Parse function configuration
	ParseFunctionURL string
	FunctionKey      string
	ParseTimeout     time.Duration
	MaxFeedSize      int64
	MaxItems         int
	FetchRetries     int

	// Import workflow configuration
	ImportCooldown time.Duration
	ResetDelay     time.Duration
	PurgeInterval  time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
