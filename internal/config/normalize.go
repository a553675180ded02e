package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBackend(); err != nil {
		return err
	}
	c.normalizeQueues()
	c.normalizeRetry()
	c.normalizeLibrary()
	c.normalizeNotifications()
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() error {
	if value, ok := os.LookupEnv("KARAOKE_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Backend.APIToken = value
	}
	if value, ok := os.LookupEnv("KARAOKE_TRANSFER_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.TransferURL = value
	}
	if value, ok := os.LookupEnv("KARAOKE_QUEUE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.QueueURL = value
	}
	if value, ok := os.LookupEnv("KARAOKE_AMQP_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.AMQPURL = value
	}

	c.Backend.TransferURL = strings.TrimRight(strings.TrimSpace(c.Backend.TransferURL), "/")
	if c.Backend.TransferURL == "" {
		c.Backend.TransferURL = defaultTransferURL
	}
	c.Backend.QueueURL = strings.TrimRight(strings.TrimSpace(c.Backend.QueueURL), "/")
	if c.Backend.QueueURL == "" {
		c.Backend.QueueURL = defaultQueueURL
	}
	c.Backend.AMQPURL = strings.TrimSpace(c.Backend.AMQPURL)
	c.Backend.APIToken = strings.TrimSpace(c.Backend.APIToken)

	c.Backend.QueueDriver = strings.ToLower(strings.TrimSpace(c.Backend.QueueDriver))
	if c.Backend.QueueDriver == "" {
		c.Backend.QueueDriver = defaultQueueDriver
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
	if c.Backend.PollInterval <= 0 {
		c.Backend.PollInterval = defaultPollInterval
	}
	if c.Backend.WaitTimeout < 0 {
		c.Backend.WaitTimeout = 0
	}

	for name, raw := range map[string]string{
		"backend.transfer_url": c.Backend.TransferURL,
		"backend.queue_url":    c.Backend.QueueURL,
	} {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) normalizeQueues() {
	c.Queues.Split = strings.TrimSpace(c.Queues.Split)
	if c.Queues.Split == "" {
		c.Queues.Split = defaultQueueSplit
	}
	c.Queues.Align = strings.TrimSpace(c.Queues.Align)
	if c.Queues.Align == "" {
		c.Queues.Align = defaultQueueAlign
	}
	c.Queues.AlignEN = strings.TrimSpace(c.Queues.AlignEN)
	if c.Queues.AlignEN == "" {
		c.Queues.AlignEN = defaultQueueAlignEN
	}
	c.Queues.AlignLine = strings.TrimSpace(c.Queues.AlignLine)
	if c.Queues.AlignLine == "" {
		c.Queues.AlignLine = defaultQueueAlignLine
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if c.Retry.InitialBackoffMS <= 0 {
		c.Retry.InitialBackoffMS = defaultRetryInitialMS
	}
	if c.Retry.MaxBackoffMS <= 0 {
		c.Retry.MaxBackoffMS = defaultRetryMaxMS
	}
}

func (c *Config) normalizeLibrary() {
	c.Library.FFmpegBinary = strings.TrimSpace(c.Library.FFmpegBinary)
	if c.Library.FFmpegBinary == "" {
		c.Library.FFmpegBinary = defaultFFmpegBinary
	}
	c.Library.FFprobeBinary = strings.TrimSpace(c.Library.FFprobeBinary)
	if c.Library.FFprobeBinary == "" {
		c.Library.FFprobeBinary = defaultFFprobeBinary
	}
	c.Library.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Library.DefaultLanguage))
	c.Library.LyricsFile = strings.TrimSpace(c.Library.LyricsFile)
	if c.Library.LyricsFile == "" {
		c.Library.LyricsFile = defaultLyricsFile
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLLM() {
	if value, ok := os.LookupEnv("KARAOKE_LLM_API_KEY"); ok && strings.TrimSpace(value) != "" {
		c.LLM.APIKey = value
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = defaultLLMTimeout
	}
	if c.LLM.MinConfidence <= 0 {
		c.LLM.MinConfidence = defaultLLMMinConfidence
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
