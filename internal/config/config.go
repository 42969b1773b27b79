package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

const (
	DefaultPollInterval    = 4 * time.Second
	DefaultIdleDelay       = 1 * time.Second
	DefaultGracefulTimeout = 3 * time.Second
	DefaultForceTimeout    = 2 * time.Second
	DefaultHistoryLimit    = 500
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	LogLevel   string           `mapstructure:"log_level"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Download   DownloadConfig   `mapstructure:"download"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Netcheck   NetcheckConfig   `mapstructure:"netcheck"`
}

type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	APIKey    string `mapstructure:"api_key"`
	RateLimit int    `mapstructure:"rate_limit"`
}

type PathsConfig struct {
	DownloadDir     string `mapstructure:"download_dir"`
	TempDir         string `mapstructure:"temp_dir"`
	StateDir        string `mapstructure:"state_dir"`
	DatabasePath    string `mapstructure:"database_path"`
	PlatformFolders bool   `mapstructure:"platform_folders"`
}

type DownloadConfig struct {
	RateLimit      string `mapstructure:"rate_limit"`
	Format         string `mapstructure:"format"`
	AudioFormat    string `mapstructure:"audio_format"`
	EmbedThumbnail bool   `mapstructure:"embed_thumbnail"`
	Playlist       bool   `mapstructure:"playlist"`
	Archive        bool   `mapstructure:"archive"`
	CookiesFile    string `mapstructure:"cookies_file"`
	CookiesBrowser string `mapstructure:"cookies_browser"`
	MinFreeMB      int64  `mapstructure:"min_free_mb"`
}

type QueueConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	HistoryLimit int           `mapstructure:"history_limit"`
}

type WorkerConfig struct {
	IdleDelay time.Duration `mapstructure:"idle_delay"`
}

type SupervisorConfig struct {
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	ForceTimeout    time.Duration `mapstructure:"force_timeout"`
}

type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
}

type StorageConfig struct {
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3KeyPrefix string `mapstructure:"s3_key_prefix"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
}

type ToolsConfig struct {
	YtdlpPath      string        `mapstructure:"ytdlp_path"`
	FfmpegPath     string        `mapstructure:"ffmpeg_path"`
	UpdateOnStart  bool          `mapstructure:"update_on_start"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`
}

type NetcheckConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	ProbeURLs []string `mapstructure:"probe_urls"`
}

// NewConfig reads configuration from environment variables (prefix MDS_)
// and an optional config.yaml, applies defaults and validates the result.
func NewConfig() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("MDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/media-download-server")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.WrapError(err, "failed to unmarshal config", nil)
	}

	cfg.applyDerivedPaths()

	if err := cfg.validate(); err != nil {
		return nil, utils.WrapError(err, "configuration validation failed", nil)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("paths.download_dir", "")
	v.SetDefault("paths.temp_dir", "")
	v.SetDefault("paths.state_dir", "")
	v.SetDefault("paths.database_path", "")
	v.SetDefault("paths.platform_folders", true)
	v.SetDefault("download.rate_limit", "5M")
	v.SetDefault("download.format", "mkv")
	v.SetDefault("download.audio_format", "m4a")
	v.SetDefault("download.embed_thumbnail", true)
	v.SetDefault("download.playlist", true)
	v.SetDefault("download.archive", false)
	v.SetDefault("download.cookies_file", "")
	v.SetDefault("download.cookies_browser", "")
	v.SetDefault("download.min_free_mb", 500)
	v.SetDefault("queue.poll_interval", DefaultPollInterval)
	v.SetDefault("queue.history_limit", DefaultHistoryLimit)
	v.SetDefault("worker.idle_delay", DefaultIdleDelay)
	v.SetDefault("supervisor.graceful_timeout", DefaultGracefulTimeout)
	v.SetDefault("supervisor.force_timeout", DefaultForceTimeout)
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_key_prefix", "downloads")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("tools.ytdlp_path", "yt-dlp")
	v.SetDefault("tools.ffmpeg_path", "ffmpeg")
	v.SetDefault("tools.update_on_start", true)
	v.SetDefault("tools.update_interval", time.Duration(0))
	v.SetDefault("netcheck.enabled", true)
	v.SetDefault("netcheck.probe_urls", []string{"https://www.youtube.com", "https://www.google.com"})
}

func (c *Config) applyDerivedPaths() {
	if c.Paths.TempDir == "" && c.Paths.DownloadDir != "" {
		c.Paths.TempDir = filepath.Join(c.Paths.DownloadDir, ".incomplete")
	}
	if c.Paths.StateDir == "" && c.Paths.DownloadDir != "" {
		c.Paths.StateDir = filepath.Join(c.Paths.DownloadDir, ".state")
	}
	if c.Paths.DatabasePath == "" && c.Paths.StateDir != "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.StateDir, "media-library.db")
	}
}

// EnsureDirs creates the download, temp and state directories if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.TempDir, c.Paths.StateDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return utils.WrapError(err, "failed to create directory", map[string]any{
				"dir": dir,
			})
		}
	}
	return nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
