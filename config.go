package geoflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/geoflow/service/dispatcher"
	"github.com/viant/geoflow/service/messaging"
	"github.com/viant/geoflow/service/meta"
	"github.com/viant/geoflow/service/worker"
	"gopkg.in/yaml.v3"
)

// Store kinds
const (
	StoreMemory   = "memory"
	StoreFs       = "fs"
	StorePostgres = "postgres"
)

// Config is a serialisable representation of the engine configuration. The
// zero-value of a nested section is replaced by its package default.
type Config struct {
	Workflows  WorkflowsConfig   `json:"workflows" yaml:"workflows"`
	Messaging  MessagingConfig   `json:"messaging" yaml:"messaging"`
	Dispatcher dispatcher.Config `json:"dispatcher" yaml:"dispatcher"`
	Cache      CacheConfig       `json:"cache" yaml:"cache"`
	Runs       RunsConfig        `json:"runs" yaml:"runs"`
	Worker     WorkerConfig      `json:"worker" yaml:"worker"`
	Assets     AssetsConfig      `json:"assets" yaml:"assets"`
	Resolver   ResolverConfig    `json:"resolver" yaml:"resolver"`
	API        APIConfig         `json:"api" yaml:"api"`
}

// WorkflowsConfig locates workflow definitions (<baseURL>/<name>.yaml)
type WorkflowsConfig struct {
	BaseURL string `json:"baseURL" yaml:"baseURL"`
}

// MessagingConfig selects the worker protocol and event queue vendor
type MessagingConfig struct {
	Vendor  messaging.Vendor `json:"vendor" yaml:"vendor"`
	BaseURL string           `json:"baseURL" yaml:"baseURL"`
}

// CacheConfig controls result cache storage and retention
type CacheConfig struct {
	Store string `json:"store" yaml:"store"`
	// URL is a directory for fs, a connection string for postgres.
	URL          string        `json:"url" yaml:"url"`
	TTL          time.Duration `json:"ttl" yaml:"ttl"`
	Namespace    string        `json:"namespace" yaml:"namespace"`
	VerifyAssets bool          `json:"verifyAssets" yaml:"verifyAssets"`
	Shards       int           `json:"shards" yaml:"shards"`
}

// RunsConfig controls run snapshot storage
type RunsConfig struct {
	Store string `json:"store" yaml:"store"`
	URL   string `json:"url" yaml:"url"`
}

// WorkerConfig controls the in-process worker
type WorkerConfig struct {
	Enabled       bool `json:"enabled" yaml:"enabled"`
	worker.Config `json:",inline" yaml:",inline"`
}

type AssetsConfig struct {
	BaseURL string `json:"baseURL" yaml:"baseURL"`
}

type ResolverConfig struct {
	MaxDepth int `json:"maxDepth" yaml:"maxDepth"`
}

type APIConfig struct {
	Port int `json:"port" yaml:"port"`
}

// DefaultConfig returns an in-memory, single process configuration.
func DefaultConfig() *Config {
	return &Config{
		Messaging:  MessagingConfig{Vendor: messaging.VendorMemory},
		Dispatcher: dispatcher.DefaultConfig(),
		Cache:      CacheConfig{Store: StoreMemory, Shards: 16},
		Runs:       RunsConfig{Store: StoreMemory},
		Worker:     WorkerConfig{Enabled: true, Config: worker.DefaultConfig()},
		Assets:     AssetsConfig{BaseURL: "mem://localhost/geoflow/assets"},
		Resolver:   ResolverConfig{MaxDepth: 8},
		API:        APIConfig{Port: 8080},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch c.Messaging.Vendor {
	case messaging.VendorMemory:
	case messaging.VendorFs:
		if c.Messaging.BaseURL == "" {
			errs = append(errs, fmt.Errorf("messaging.baseURL is required for fs vendor"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported messaging.vendor: %q", c.Messaging.Vendor))
	}
	if err := c.Dispatcher.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Cache.Store {
	case StoreMemory:
	case StoreFs, StorePostgres:
		if c.Cache.URL == "" {
			errs = append(errs, fmt.Errorf("cache.url is required for %v store", c.Cache.Store))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache.store: %q", c.Cache.Store))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative"))
	}
	switch c.Runs.Store {
	case StoreMemory:
	case StoreFs:
		if c.Runs.URL == "" {
			errs = append(errs, fmt.Errorf("runs.url is required for fs store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported runs.store: %q", c.Runs.Store))
	}
	if c.Worker.Enabled {
		if err := c.Worker.Config.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Assets.BaseURL == "" {
		errs = append(errs, fmt.Errorf("assets.baseURL is required"))
	}
	if c.Resolver.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("resolver.maxDepth must be > 0"))
	}
	return errors.Join(errs...)
}

// LoadConfig decodes the YAML document at URL onto DefaultConfig. ${env.KEY}
// expressions are expanded before decoding.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := meta.New(fs, "").Download(ctx, URL)
	if err != nil {
		return nil, err
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", URL, err)
	}
	return ret, nil
}
