package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateBackend() error {
	if err := validateHTTPURL("backend.transfer_url", c.Backend.TransferURL); err != nil {
		return err
	}
	switch c.Backend.QueueDriver {
	case QueueDriverHTTP:
		if err := validateHTTPURL("backend.queue_url", c.Backend.QueueURL); err != nil {
			return err
		}
	case QueueDriverAMQP:
		if c.Backend.AMQPURL == "" {
			return errors.New("backend.amqp_url is required when backend.queue_driver is \"amqp\" (or set KARAOKE_AMQP_URL)")
		}
		parsed, err := url.Parse(c.Backend.AMQPURL)
		if err != nil || (parsed.Scheme != "amqp" && parsed.Scheme != "amqps") {
			return fmt.Errorf("backend.amqp_url must be an amqp:// or amqps:// url, got %q", c.Backend.AMQPURL)
		}
	default:
		return fmt.Errorf("backend.queue_driver must be %q or %q, got %q", QueueDriverHTTP, QueueDriverAMQP, c.Backend.QueueDriver)
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxBackoffMS < c.Retry.InitialBackoffMS {
		return errors.New("retry.max_backoff_ms must be greater than or equal to retry.initial_backoff_ms")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if !c.LLMEnabled() {
		return nil
	}
	if err := validateHTTPURL("llm.base_url", c.LLM.BaseURL); err != nil {
		return err
	}
	if c.LLM.MinConfidence > 1 {
		return fmt.Errorf("llm.min_confidence must be between 0 and 1, got %v", c.LLM.MinConfidence)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http:// or https:// url, got %q", field, raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", field, raw)
	}
	return nil
}
