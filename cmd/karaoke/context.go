package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"karaoke/internal/config"
	"karaoke/internal/fetcher"
	"karaoke/internal/jobqueue"
	"karaoke/internal/jobqueue/rabbitmq"
	"karaoke/internal/library"
	"karaoke/internal/logging"
	"karaoke/internal/notifications"
	"karaoke/internal/runstore"
	"karaoke/internal/textutil"
	"karaoke/internal/transfer"
	"karaoke/internal/workflow"
)

const defaultEnvFile = ".env"

type commandContext struct {
	configFlag *string
	envFlag    *string

	envOnce sync.Once
	envErr  error

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, envFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
	}
}

// loadEnv applies a dotenv file without overriding variables already set in
// the environment. The default file is optional; an explicit one is not.
func (c *commandContext) loadEnv() error {
	c.envOnce.Do(func() {
		var path string
		if c.envFlag != nil {
			path = strings.TrimSpace(*c.envFlag)
		}
		if path == "" {
			if _, err := os.Stat(defaultEnvFile); err != nil {
				return
			}
			path = defaultEnvFile
		}
		if err := godotenv.Load(path); err != nil {
			c.envErr = fmt.Errorf("load env file %s: %w", path, err)
		}
	})
	return c.envErr
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// engine bundles the collaborators a command needs. Fields beyond the store
// and library are only set by openEngine.
type engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runstore.Store
	library  *library.Library
	notifier notifications.Service
	flow     *workflow.Orchestrator

	closers []func() error
}

// openLibrary opens the run journal and the content library.
func (c *commandContext) openLibrary() (*engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open run journal: %w", err)
	}
	e := &engine{cfg: cfg, logger: logger, store: store}
	e.closers = append(e.closers, store.Close)

	lib, err := library.NewFromConfig(cfg, store, logger)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("open library: %w", err)
	}
	e.library = lib
	return e, nil
}

// openEngine additionally connects the transfer and queue backends and builds
// the workflow orchestrator. A non-empty lang replaces language detection.
func (c *commandContext) openEngine(lang string) (*engine, error) {
	e, err := c.openLibrary()
	if err != nil {
		return nil, err
	}
	cfg := e.cfg
	if lang != "" {
		e.library = e.library.WithDetector(library.StaticDetector(lang))
	}

	transferClient, err := transfer.NewFromConfig(cfg, e.logger)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("transfer client: %w", err)
	}

	var queue jobqueue.Client
	switch cfg.Backend.QueueDriver {
	case config.QueueDriverAMQP:
		broker, err := rabbitmq.DialFromConfig(cfg, e.logger)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("queue broker: %w", err)
		}
		e.closers = append(e.closers, broker.Close)
		queue = broker
	default:
		client, err := jobqueue.NewHTTPClientFromConfig(cfg, e.logger)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("queue client: %w", err)
		}
		queue = client
	}

	results := fetcher.New(transferClient, fetcher.PolicyFromConfig(cfg), fetcher.WithLogger(e.logger))
	flow, err := workflow.New(workflow.Dependencies{
		Library:  e.library,
		Transfer: transferClient,
		Queue:    queue,
		Fetcher:  results,
		Queues:   cfg.Queues,
		Logger:   e.logger,
	})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.flow = flow
	e.notifier = notifications.NewService(cfg)
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	return textutil.Ternary(value, "yes", "no")
}
