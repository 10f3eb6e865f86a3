package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Twitter   TwitterConfig
	Scan      ScanConfig
	Threat    ThreatConfig
	Sentiment SentimentConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

type TwitterConfig struct {
	BearerToken string
	BaseURL     string
	NitterURL   string
	TimeoutSec  int
}

type ScanConfig struct {
	IntervalMinutes  int
	MaxResults       int
	DailyQuota       int
	PauseMinutes     int
	KeywordDelaySec  int
	Keywords         []string
	RegionTerms      []string
	Language         string
	AnonymizeAuthors bool
	AuthorSalt       string
}

type ThreatConfig struct {
	HighKeywords   []string
	MediumKeywords []string
	LowKeywords    []string
	Locations      []string
}

type SentimentConfig struct {
	Enabled         bool
	APIKey          string
	BaseURL         string
	Model           string
	TimeoutSec      int
	CacheTTLMinutes int
}

type StorageConfig struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	BackupPath  string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type ServerConfig struct {
	Enabled            bool
	Host               string
	Port               int
	APIToken           string
	RateLimitPerMinute int
	AllowedOrigins     []string
	Development        bool
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

func (s ScanConfig) PauseInterval() time.Duration {
	return time.Duration(s.PauseMinutes) * time.Minute
}

func (s ScanConfig) KeywordDelay() time.Duration {
	return time.Duration(s.KeywordDelaySec) * time.Second
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load() (*Config, error) {
	// A missing .env is normal in containers; real env vars still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/safeguard")

	v.SetEnvPrefix("SAFEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindLegacyEnv keeps the variable names the crawler has always used working
// next to the SAFEGUARD_* ones.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"twitter.bearerToken":  {"SAFEGUARD_TWITTER_BEARERTOKEN", "TWITTER_BEARER_TOKEN"},
		"twitter.nitterURL":    {"SAFEGUARD_TWITTER_NITTERURL", "NITTER_URL"},
		"storage.postgresDSN":  {"SAFEGUARD_STORAGE_POSTGRESDSN", "SUPABASE_DB_URL", "DATABASE_URL"},
		"sentiment.apiKey":     {"SAFEGUARD_SENTIMENT_APIKEY", "SENTIMENT_API_KEY", "OPENAI_API_KEY"},
		"sentiment.baseURL":    {"SAFEGUARD_SENTIMENT_BASEURL", "SENTIMENT_BASE_URL"},
		"server.apiToken":      {"SAFEGUARD_SERVER_APITOKEN", "API_TOKEN"},
		"scan.intervalMinutes": {"SAFEGUARD_SCAN_INTERVALMINUTES", "SCAN_INTERVAL_MINUTES"},
		"scan.maxResults":      {"SAFEGUARD_SCAN_MAXRESULTS", "MAX_TWEETS_PER_KEYWORD"},
		"scan.dailyQuota":      {"SAFEGUARD_SCAN_DAILYQUOTA", "MAX_DAILY_SCANS"},
	}

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("twitter.bearerToken", "")
	v.SetDefault("twitter.baseURL", "https://api.twitter.com")
	v.SetDefault("twitter.nitterURL", "")
	v.SetDefault("twitter.timeoutSec", 15)

	v.SetDefault("scan.intervalMinutes", 15)
	v.SetDefault("scan.maxResults", 10)
	v.SetDefault("scan.dailyQuota", 96)
	v.SetDefault("scan.pauseMinutes", 60)
	v.SetDefault("scan.keywordDelaySec", 3)
	v.SetDefault("scan.keywords", []string{
		"nitakupiga", "kukuua", "napiga wewe",
		"kill you", "attack you", "nitakuchapa",
	})
	v.SetDefault("scan.regionTerms", []string{"Kenya", "Nairobi", "Mombasa"})
	v.SetDefault("scan.language", "en")
	v.SetDefault("scan.anonymizeAuthors", false)
	v.SetDefault("scan.authorSalt", "")

	v.SetDefault("threat.highKeywords", []string{"kill", "kukuua", "attack", "shambulio", "stab", "choma", "murder"})
	v.SetDefault("threat.mediumKeywords", []string{"beat", "hurt", "napiga", "nitakupiga", "nitakuchapa", "threat", "harm"})
	v.SetDefault("threat.lowKeywords", []string{"insult", "matusi", "stupid", "idiot"})
	v.SetDefault("threat.locations", []string{"nairobi", "kibera", "mathare", "mombasa", "kisumu", "nakuru"})

	v.SetDefault("sentiment.enabled", true)
	v.SetDefault("sentiment.apiKey", "")
	v.SetDefault("sentiment.baseURL", "")
	v.SetDefault("sentiment.model", "gpt-4o-mini")
	v.SetDefault("sentiment.timeoutSec", 20)
	v.SetDefault("sentiment.cacheTTLMinutes", 1440)

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.postgresDSN", "")
	v.SetDefault("storage.sqlitePath", "./data/safeguard.db")
	v.SetDefault("storage.backupPath", "twitter_threats.csv")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.apiToken", "")
	v.SetDefault("server.rateLimitPerMinute", 120)
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.development", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.outputPath", "stdout")
}

func (c *Config) Validate() error {
	if c.Scan.IntervalMinutes <= 0 {
		return fmt.Errorf("scan.intervalMinutes must be positive, got %d", c.Scan.IntervalMinutes)
	}
	if c.Scan.MaxResults <= 0 {
		return fmt.Errorf("scan.maxResults must be positive, got %d", c.Scan.MaxResults)
	}
	if c.Scan.DailyQuota <= 0 {
		return fmt.Errorf("scan.dailyQuota must be positive, got %d", c.Scan.DailyQuota)
	}
	if len(c.Scan.Keywords) == 0 {
		return fmt.Errorf("scan.keywords must not be empty")
	}
	// An unsalted hash of a public author ID can be recomputed by anyone.
	if c.Scan.AnonymizeAuthors && c.Scan.AuthorSalt == "" {
		return fmt.Errorf("scan.authorSalt must be set when scan.anonymizeAuthors is enabled")
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "", "none", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	return nil
}
