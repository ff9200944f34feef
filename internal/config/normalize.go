package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCatalog()
	c.normalizeLLM()
	c.normalizePublisher()
	c.normalizeNotifications()
	c.normalizeWorkers()
	c.normalizeFanout()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = lookupEnv("PRESSROOM_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	c.Catalog.Country = strings.ToLower(strings.TrimSpace(c.Catalog.Country))
	if c.Catalog.Country == "" {
		c.Catalog.Country = defaultCatalogCountry
	}
	c.Catalog.Language = strings.ToLower(strings.TrimSpace(c.Catalog.Language))
	if c.Catalog.Language == "" {
		c.Catalog.Language = defaultCatalogLanguage
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("PRESSROOM_LLM_API_KEY", "OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

func (c *Config) normalizePublisher() {
	c.Publisher.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publisher.BaseURL), "/")
	if c.Publisher.BaseURL == "" {
		c.Publisher.BaseURL = lookupEnv("PRESSROOM_WP_URL")
	}
	c.Publisher.Username = strings.TrimSpace(c.Publisher.Username)
	if c.Publisher.Username == "" {
		c.Publisher.Username = lookupEnv("PRESSROOM_WP_USERNAME")
	}
	c.Publisher.AppPassword = strings.TrimSpace(c.Publisher.AppPassword)
	if c.Publisher.AppPassword == "" {
		c.Publisher.AppPassword = lookupEnv("PRESSROOM_WP_APP_PASSWORD")
	}
	c.Publisher.PostStatus = strings.ToLower(strings.TrimSpace(c.Publisher.PostStatus))
	if c.Publisher.PostStatus == "" {
		c.Publisher.PostStatus = defaultPostStatus
	}
	if c.Publisher.TimeoutSeconds <= 0 {
		c.Publisher.TimeoutSeconds = defaultPublisherTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupEnv("PRESSROOM_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.PollIntervalMS <= 0 {
		c.Workers.PollIntervalMS = defaultWorkerPollIntervalMS
	}
	if c.Workers.BusyBackoffMS <= 0 {
		c.Workers.BusyBackoffMS = defaultWorkerBusyBackoffMS
	}
	if c.Workers.ShutdownTimeout <= 0 {
		c.Workers.ShutdownTimeout = defaultWorkerShutdownTimeout
	}
	if c.Workers.HeartbeatInterval <= 0 {
		c.Workers.HeartbeatInterval = defaultWorkerHeartbeat
	}
	if c.Workers.HeartbeatTimeout <= 0 {
		c.Workers.HeartbeatTimeout = defaultWorkerHeartbeatTimeout
	}
}

func (c *Config) normalizeFanout() {
	if c.Fanout.BufferSize <= 0 {
		c.Fanout.BufferSize = defaultFanoutBufferSize
	}
	if c.Fanout.HeartbeatInterval <= 0 {
		c.Fanout.HeartbeatInterval = defaultFanoutHeartbeat
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "auto":
		format = "auto"
	case "text", "pretty":
		format = "console"
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	if level == "warning" {
		level = "warn"
	}
	c.Logging.Level = level
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
