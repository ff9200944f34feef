package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Fanout.BufferSize < 1 {
		return errors.New("fanout.buffer_size must be positive")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Concurrency < 1 {
		return errors.New("workers.concurrency must be at least 1")
	}
	if c.Workers.JobTimeout < 0 {
		return errors.New("workers.job_timeout must not be negative")
	}
	if c.Workers.HeartbeatTimeout <= c.Workers.HeartbeatInterval {
		return errors.New("workers.heartbeat_timeout must exceed workers.heartbeat_interval")
	}
	return nil
}

func (c *Config) validatePublisher() error {
	switch c.Publisher.PostStatus {
	case "draft", "publish", "pending", "private":
	default:
		return fmt.Errorf("publisher.post_status %q must be one of draft, publish, pending, private", c.Publisher.PostStatus)
	}
	if c.Publisher.BaseURL != "" {
		parsed, err := url.Parse(c.Publisher.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("publisher.base_url %q is not an absolute URL", c.Publisher.BaseURL)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.AnnouncementDiscount < 0 || c.Notifications.AnnouncementDiscount > 100 {
		return errors.New("notifications.announcement_discount must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be auto, console, or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn, or error", c.Logging.Level)
	}
	if c.Logging.RetentionRuns < 0 {
		return errors.New("logging.retention_runs must be zero or positive")
	}
	return nil
}
