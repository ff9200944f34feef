package config

const (
	defaultDataDir                = "~/.local/share/pressroom"
	defaultLogDir                 = "~/.local/share/pressroom/logs"
	defaultAPIBind                = "127.0.0.1:7391"
	defaultCatalogBaseURL         = "https://store.steampowered.com/api"
	defaultCatalogCountry         = "us"
	defaultCatalogLanguage        = "english"
	defaultCatalogTimeout         = 20
	defaultLLMBaseURL             = "https://api.openai.com/v1"
	defaultLLMModel               = "gpt-4o-mini"
	defaultLLMTimeout             = 60
	defaultPostStatus             = "draft"
	defaultPublisherTimeout       = 30
	defaultNotifyRequestTimeout   = 10
	defaultAnnouncementDiscount   = 50
	defaultWorkerConcurrency      = 3
	defaultWorkerPollIntervalMS   = 2000
	defaultWorkerBusyBackoffMS    = 250
	defaultWorkerJobTimeout       = 300
	defaultWorkerShutdownTimeout  = 15
	defaultWorkerHeartbeat        = 15
	defaultWorkerHeartbeatTimeout = 120
	defaultFanoutBufferSize       = 50
	defaultFanoutHeartbeat        = 30
	defaultLogFormat              = "auto"
	defaultLogLevel               = "info"
	defaultLogRetentionRuns       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			Country:        defaultCatalogCountry,
			Language:       defaultCatalogLanguage,
			TimeoutSeconds: defaultCatalogTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Publisher: Publisher{
			PostStatus:     defaultPostStatus,
			TimeoutSeconds: defaultPublisherTimeout,
		},
		Notifications: Notifications{
			RequestTimeout:       defaultNotifyRequestTimeout,
			JobCompleted:         true,
			JobFailed:            true,
			Announcements:        true,
			AnnouncementDiscount: defaultAnnouncementDiscount,
		},
		Workers: Workers{
			Concurrency:       defaultWorkerConcurrency,
			PollIntervalMS:    defaultWorkerPollIntervalMS,
			BusyBackoffMS:     defaultWorkerBusyBackoffMS,
			JobTimeout:        defaultWorkerJobTimeout,
			ShutdownTimeout:   defaultWorkerShutdownTimeout,
			HeartbeatInterval: defaultWorkerHeartbeat,
			HeartbeatTimeout:  defaultWorkerHeartbeatTimeout,
		},
		Fanout: Fanout{
			BufferSize:        defaultFanoutBufferSize,
			HeartbeatInterval: defaultFanoutHeartbeat,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionRuns: defaultLogRetentionRuns,
		},
	}
}
