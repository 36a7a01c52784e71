// Package config builds the single configuration value threaded into every
// component.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/batch-validator/pkg/batch"
	"github.com/go-go-golems/batch-validator/pkg/layers"
	"github.com/go-go-golems/batch-validator/pkg/relocate"
	"github.com/go-go-golems/batch-validator/pkg/store"
)

type StorageConfig struct {
	Backend          string
	ConnectionString string
	Container        string
	// RootPath is the path member files live directly under.
	RootPath string
	BaseDir  string
}

type ValidationConfig struct {
	Schema           *batch.Schema
	RequiredEncoding string
	PollInterval     time.Duration
	MaxPolls         int
	StaleAfter       time.Duration
}

type QueueConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Config holds every setting the components need.
type Config struct {
	Storage    StorageConfig
	Validation ValidationConfig
	Queue      QueueConfig
}

// FromSettings converts parsed layer settings into a validated Config. The
// queue settings may be nil for commands that do not use the queue.
func FromSettings(ss *layers.StorageSettings, vs *layers.ValidationSettings, qs *layers.QueueSettings) (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Backend:          ss.Backend,
			ConnectionString: ss.ConnectionString,
			Container:        ss.Container,
			RootPath:         strings.Trim(ss.RootPath, "/"),
			BaseDir:          ss.FSBaseDir,
		},
		Validation: ValidationConfig{
			RequiredEncoding: vs.RequiredEncoding,
			MaxPolls:         vs.MaxPolls,
		},
	}

	var err error
	if cfg.Validation.PollInterval, err = parseDuration("poll-interval", vs.PollInterval); err != nil {
		return nil, err
	}
	if cfg.Validation.StaleAfter, err = parseDuration("stale-after", vs.StaleAfter); err != nil {
		return nil, err
	}

	if vs.SchemaFile != "" {
		if cfg.Validation.Schema, err = batch.LoadSchema(vs.SchemaFile); err != nil {
			return nil, err
		}
	}

	if qs != nil {
		for _, b := range qs.KafkaBrokers {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Queue.Brokers = append(cfg.Queue.Brokers, b)
			}
		}
		cfg.Queue.Topic = qs.KafkaTopic
		cfg.Queue.GroupID = qs.KafkaGroupID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func parseDuration(name, v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return d, nil
}

// Validate checks the storage settings and fills in defaults.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "", layers.BackendAzure:
		c.Storage.Backend = layers.BackendAzure
		if c.Storage.ConnectionString == "" {
			return errors.New("storage-connection-string is required for the azure backend")
		}
		if c.Storage.Container == "" {
			return errors.New("storage-container is required for the azure backend")
		}
	case layers.BackendFS:
		if c.Storage.BaseDir == "" {
			return errors.New("fs-base-dir is required for the fs backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Validation.Schema == nil {
		c.Validation.Schema = batch.DefaultSchema()
	}
	if c.Validation.RequiredEncoding == "" {
		c.Validation.RequiredEncoding = c.Validation.Schema.Encoding
	}
	if c.Validation.PollInterval <= 0 {
		c.Validation.PollInterval = relocate.DefaultPollInterval
	}
	if c.Validation.MaxPolls <= 0 {
		c.Validation.MaxPolls = relocate.DefaultMaxPolls
	}
	return nil
}

// ValidateQueue checks the settings needed by the Kafka transport.
func (c *Config) ValidateQueue() error {
	if len(c.Queue.Brokers) == 0 {
		return errors.New("kafka-brokers is required")
	}
	if c.Queue.Topic == "" {
		return errors.New("kafka-topic is required")
	}
	if c.Queue.GroupID == "" {
		return errors.New("kafka-group-id is required")
	}
	return nil
}

// OpenStore creates the configured object store.
func (c *Config) OpenStore() (store.Store, error) {
	switch c.Storage.Backend {
	case layers.BackendFS:
		return store.NewFSStore(c.Storage.BaseDir)
	default:
		return store.NewAzureStore(c.Storage.ConnectionString, c.Storage.Container)
	}
}
