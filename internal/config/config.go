package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Restore  RestoreConfig  `mapstructure:"restore"`
	Import   ImportConfig   `mapstructure:"import"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Console output as JSON lines instead of the human readable encoder
	LogJSON bool `mapstructure:"log_json"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// Unix socket; takes precedence over host and port when set
	Socket string `mapstructure:"socket"`
	TLS    string `mapstructure:"tls"`

	MaxOpenConns   int `mapstructure:"max_open_conns"`
	ConnectRetries int `mapstructure:"connect_retries"`
}

type PathsConfig struct {
	ProjectRoot string `mapstructure:"project_root"`
	BackupDir   string `mapstructure:"backup_dir"`
	UploadsDir  string `mapstructure:"uploads_dir"`
}

type BackupConfig struct {
	Schedule        string         `mapstructure:"schedule"`
	CompressUploads bool           `mapstructure:"compress_uploads"`
	RetentionDays   int            `mapstructure:"retention_days"`
	UploadTargets   []UploadTarget `mapstructure:"upload_targets"`
}

type RestoreConfig struct {
	MaxErrorDetails  int  `mapstructure:"max_error_details"`
	PreRestoreBackup bool `mapstructure:"pre_restore_backup"`
}

type ImportConfig struct {
	MaxPayloadBytes int `mapstructure:"max_payload_bytes"`
}

type HTTPConfig struct {
	Addr        string `mapstructure:"addr"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	FolderID        string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// S3 compatible services such as MinIO; forces path-style addressing
	Endpoint string `mapstructure:"endpoint"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`

	// Local mirror, usually another disk or a network mount
	Path string `mapstructure:"path"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SQLKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sqlkeep")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.connect_retries", 3)

	v.SetDefault("paths.project_root", ".")
	v.SetDefault("paths.backup_dir", "backups")
	v.SetDefault("paths.uploads_dir", "api/uploads")

	v.SetDefault("backup.compress_uploads", true)
	v.SetDefault("backup.retention_days", 7)

	v.SetDefault("restore.max_error_details", 1000)
	v.SetDefault("restore.pre_restore_backup", false)

	v.SetDefault("import.max_payload_bytes", 5_000_000)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.max_upload_mb", 256)
}

func (c *Config) Validate() error {
	if c.Database.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if c.Database.Host == "" && c.Database.Socket == "" {
		return fmt.Errorf("database.host or database.socket is required")
	}
	if c.Paths.ProjectRoot == "" {
		return fmt.Errorf("paths.project_root is required")
	}
	if c.Paths.BackupDir == "" {
		return fmt.Errorf("paths.backup_dir is required")
	}
	if c.Paths.UploadsDir == "" {
		return fmt.Errorf("paths.uploads_dir is required")
	}
	if c.Backup.Schedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Backup.Schedule); err != nil {
			return fmt.Errorf("backup.schedule: %w", err)
		}
	}
	if c.Import.MaxPayloadBytes <= 0 {
		return fmt.Errorf("import.max_payload_bytes must be positive")
	}

	for i, t := range c.GetEnabledUploadTargets() {
		switch t.Type {
		case "s3":
			if t.Bucket == "" {
				return fmt.Errorf("upload_targets[%d]: bucket is required for s3", i)
			}
		case "gdrive":
			if t.CredentialsFile == "" {
				return fmt.Errorf("upload_targets[%d]: credentials_file is required for gdrive", i)
			}
		case "telegram":
			if t.BotToken == "" || t.ChatID == "" {
				return fmt.Errorf("upload_targets[%d]: bot_token and chat_id are required for telegram", i)
			}
		case "local":
			if t.Path == "" {
				return fmt.Errorf("upload_targets[%d]: path is required for local", i)
			}
			if c.ResolvePath(t.Path) == c.ResolvePath(c.Paths.BackupDir) {
				return fmt.Errorf("upload_targets[%d]: local path must differ from paths.backup_dir", i)
			}
		default:
			return fmt.Errorf("upload_targets[%d]: unknown type %q", i, t.Type)
		}
	}

	return nil
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}

// ResolvePath returns p as an absolute path, relative paths being taken
// from paths.project_root. Symlinks are followed when p exists.
func (c *Config) ResolvePath(p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Paths.ProjectRoot, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
