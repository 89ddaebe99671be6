package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SFTP      SFTPConfig      `mapstructure:"sftp"`
	Staging   StagingConfig   `mapstructure:"staging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Transform TransformConfig `mapstructure:"transform"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	FileOnly   bool   `mapstructure:"file_only"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SFTPConfig describes the remote HR feed. Either Password or KeyPath is required.
type SFTPConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	KeyPath     string        `mapstructure:"key_path"`
	HostKey     string        `mapstructure:"host_key"`
	Directory   string        `mapstructure:"directory"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// StagingConfig points at a local directory used instead of SFTP when sftp.enabled is false.
type StagingConfig struct {
	Directory string `mapstructure:"directory"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
}

type IngestConfig struct {
	BatchSize        int                 `mapstructure:"batch_size"`
	WriteConcurrency int                 `mapstructure:"write_concurrency"`
	RowDropTolerance float64             `mapstructure:"row_drop_tolerance"`
	RequireBaseline  bool                `mapstructure:"require_baseline"`
	SkipProcessed    bool                `mapstructure:"skip_processed"`
	FilePatterns     map[string][]string `mapstructure:"file_patterns"`
}

type TransformConfig struct {
	YearPivot          int            `mapstructure:"year_pivot"`
	YearPivotOverrides map[string]int `mapstructure:"year_pivot_overrides"`
}

type NotifyConfig struct {
	Email   EmailConfig   `mapstructure:"email"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	// AdminURL is linked from notifications that ask for approval.
	AdminURL string `mapstructure:"admin_url"`
}

type EmailConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	SMTPHost   string   `mapstructure:"smtp_host"`
	SMTPPort   int      `mapstructure:"smtp_port"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients"`
}

type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ScheduleConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxRetry     time.Duration `mapstructure:"max_retry"`
	Frequency    string        `mapstructure:"frequency"`
	DayOfWeek    string        `mapstructure:"day_of_week"`
	RunTime      string        `mapstructure:"run_time"`
	Timezone     string        `mapstructure:"timezone"`
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from the environment only
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("sftp.host", "SFTP_HOST")
	v.BindEnv("sftp.port", "SFTP_PORT")
	v.BindEnv("sftp.user", "SFTP_USER")
	v.BindEnv("sftp.password", "SFTP_PASSWORD")
	v.BindEnv("sftp.directory", "SFTP_DIRECTORY")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("notify.email.username", "SMTP_USER")
	v.BindEnv("notify.email.password", "SMTP_PASSWORD")
	v.BindEnv("notify.webhook.token", "WEBHOOK_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/hrsync.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "hrsync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("sftp.enabled", false)
	v.SetDefault("sftp.port", 22)
	v.SetDefault("sftp.directory", "ReportesRH")
	v.SetDefault("sftp.dial_timeout", 30*time.Second)
	v.SetDefault("staging.directory", "./data/staging")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "hrsync-files")
	v.SetDefault("storage.prefix", "file-versions")

	v.SetDefault("ingest.batch_size", 50)
	v.SetDefault("ingest.write_concurrency", 1)
	v.SetDefault("ingest.row_drop_tolerance", 0.5)
	v.SetDefault("ingest.require_baseline", false)
	v.SetDefault("ingest.skip_processed", true)
	v.SetDefault("ingest.file_patterns", map[string][]string{
		"employee-roster":     {"validacion alta", "empleados"},
		"termination-reasons": {"motivos", "baja"},
		"attendance":          {"prenomina"},
	})

	v.SetDefault("transform.year_pivot", 50)

	v.SetDefault("notify.email.smtp_port", 587)
	v.SetDefault("notify.webhook.timeout", 10*time.Second)
	v.SetDefault("notify.admin_url", "http://localhost:3000/admin")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.poll_interval", time.Minute)
	v.SetDefault("schedule.max_retry", 15*time.Minute)
	v.SetDefault("schedule.frequency", "weekly")
	v.SetDefault("schedule.day_of_week", "monday")
	v.SetDefault("schedule.run_time", "02:00")
	v.SetDefault("schedule.timezone", "America/Mexico_City")
}
