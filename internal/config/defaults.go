package config

const (
	defaultLibraryDir        = "~/.local/share/karaoke/library"
	defaultLogDir            = "~/.local/share/karaoke/logs"
	defaultStateDir          = "~/.local/share/karaoke/state"
	defaultTransferURL       = "http://127.0.0.1:8080/transfer"
	defaultQueueURL          = "http://127.0.0.1:8080/queue"
	defaultQueueDriver       = QueueDriverHTTP
	defaultRequestTimeout    = 60
	defaultPollInterval      = 2
	defaultWaitTimeout       = 3600
	defaultQueueSplit        = "split"
	defaultQueueAlign        = "align"
	defaultQueueAlignEN      = "align_en"
	defaultQueueAlignLine    = "align_line"
	defaultRetryMaxAttempts  = 10
	defaultRetryInitialMS    = 1000
	defaultRetryMaxMS        = 30000
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultLyricsFile        = "lyrics.txt"
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNotifyRunComplete = true
	defaultNotifyRunFailed   = true
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-2.5-flash-lite"
	defaultLLMTimeout        = 30
	defaultLLMMinConfidence  = 0.6
)

// Queue driver identifiers accepted by backend.queue_driver.
const (
	QueueDriverHTTP = "http"
	QueueDriverAMQP = "amqp"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Backend: Backend{
			TransferURL:    defaultTransferURL,
			QueueURL:       defaultQueueURL,
			QueueDriver:    defaultQueueDriver,
			RequestTimeout: defaultRequestTimeout,
			PollInterval:   defaultPollInterval,
			WaitTimeout:    defaultWaitTimeout,
		},
		Queues: Queues{
			Split:     defaultQueueSplit,
			Align:     defaultQueueAlign,
			AlignEN:   defaultQueueAlignEN,
			AlignLine: defaultQueueAlignLine,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryMaxAttempts,
			InitialBackoffMS: defaultRetryInitialMS,
			MaxBackoffMS:     defaultRetryMaxMS,
		},
		Library: Library{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			LyricsFile:    defaultLyricsFile,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			RunCompleted:   defaultNotifyRunComplete,
			RunFailed:      defaultNotifyRunFailed,
		},
		LLM: LLM{
			BaseURL:       defaultLLMBaseURL,
			Model:         defaultLLMModel,
			Timeout:       defaultLLMTimeout,
			MinConfidence: defaultLLMMinConfidence,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
