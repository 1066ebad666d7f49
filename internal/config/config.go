// Package config loads the layered configuration of the dynadao tools:
// built-in defaults, then an optional TOML or YAML file, then DYNADAO_* environment
// variables.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jacentio/dynadao/store"
)

// EnvPrefix prefixes every environment override, e.g. DYNADAO_STORE_TABLE_PREFIX.
const EnvPrefix = "DYNADAO_"

// Config is the full tool configuration.
type Config struct {
	Store store.Config `koanf:"store"`
	AWS   AWS          `koanf:"aws"`
	Log   Log          `koanf:"log"`
}

// AWS holds the settings used to build the DynamoDB client.
type AWS struct {
	// Region overrides the region of the shared AWS config.
	Region string `koanf:"region"`

	// Endpoint overrides the DynamoDB endpoint (e.g. DynamoDB Local).
	Endpoint string `koanf:"endpoint"`

	// Profile selects a shared config profile.
	Profile string `koanf:"profile"`
}

// Log holds logger settings.
type Log struct {
	Verbosity int  `koanf:"verbosity"`
	JSON      bool `koanf:"json"`
}

// defaults flattens store.DefaultConfig into koanf keys.
func defaults() map[string]interface{} {
	d := store.DefaultConfig()
	return map[string]interface{}{
		"store.table_prefix":       d.TablePrefix,
		"store.shared_table":       d.SharedTable,
		"store.shared_index":       d.SharedIndex,
		"store.default_tenant":     d.DefaultTenant,
		"store.write_chunk_limit":  d.WriteChunkLimit,
		"store.read_chunk_limit":   d.ReadChunkLimit,
		"store.max_retry_attempts": d.MaxRetryAttempts,
		"store.max_retry_backoff":  d.MaxRetryBackoff.String(),
		"store.read_capacity":      d.ReadCapacity,
		"store.write_capacity":     d.WriteCapacity,
		"log.verbosity":            0,
		"log.json":                 false,
	}
}

// Load reads the configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	// 3. Env vars
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Unmarshal
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

// envKey maps DYNADAO_STORE_TABLE_PREFIX to store.table_prefix: the first
// segment names the section, the rest is the field.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + field
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported config file type: %s", path)
}
