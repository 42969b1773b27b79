package config

import (
	"github.com/NikitaDmitryuk/media-download-server/internal/utils"
)

func (c *Config) validate() error {
	if err := c.validateRequiredFields(); err != nil {
		return err
	}
	if err := c.validateFormats(); err != nil {
		return err
	}
	if err := c.validateIntervals(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRequiredFields() error {
	var missingFields []string

	if c.Paths.DownloadDir == "" {
		missingFields = append(missingFields, "paths.download_dir")
	}
	if c.Tools.YtdlpPath == "" {
		missingFields = append(missingFields, "tools.ytdlp_path")
	}

	if len(missingFields) > 0 {
		return utils.WrapError(utils.ErrConfigurationError, "missing required settings", map[string]any{
			"missing_fields": missingFields,
		})
	}

	return nil
}

func (c *Config) validateFormats() error {
	switch c.Download.Format {
	case "mkv", "mp4", "best":
	default:
		return utils.WrapError(utils.ErrConfigurationError, "download.format must be one of mkv, mp4, best", map[string]any{
			"format": c.Download.Format,
		})
	}

	switch c.Download.AudioFormat {
	case "m4a", "mp3":
	default:
		return utils.WrapError(utils.ErrConfigurationError, "download.audio_format must be one of m4a, mp3", map[string]any{
			"audio_format": c.Download.AudioFormat,
		})
	}

	return nil
}

func (c *Config) validateIntervals() error {
	if c.Queue.PollInterval <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "queue.poll_interval must be positive", nil)
	}
	if c.Queue.HistoryLimit <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "queue.history_limit must be positive", nil)
	}
	if c.Worker.IdleDelay <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "worker.idle_delay must be positive", nil)
	}
	if c.Supervisor.GracefulTimeout <= 0 || c.Supervisor.ForceTimeout <= 0 {
		return utils.WrapError(utils.ErrConfigurationError, "supervisor timeouts must be positive", map[string]any{
			"graceful_timeout": c.Supervisor.GracefulTimeout,
			"force_timeout":    c.Supervisor.ForceTimeout,
		})
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == 0 {
		return utils.WrapError(utils.ErrConfigurationError, "notify.telegram_chat_id is required when notify.telegram_token is set", nil)
	}
	return nil
}
