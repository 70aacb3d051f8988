// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

// Package config loads service configuration. Values layer in order:
// built-in defaults, then a YAML config file, then command-line flags.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config holds the service configuration.
type Config struct {
	HTTP struct {
		Addr string `koanf:"addr"`
	} `koanf:"http"`
	Observability struct {
		Addr string `koanf:"addr"`
	} `koanf:"observability"`
	Database struct {
		URL string `koanf:"url"`
	} `koanf:"database"`
	Log struct {
		Format string `koanf:"format"`
		Level  string `koanf:"level"`
	} `koanf:"log"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	var cfg Config
	cfg.HTTP.Addr = ":8080"
	cfg.Observability.Addr = ":9100"
	cfg.Database.URL = "postgres://localhost:5432/koinonia"
	cfg.Log.Format = "json"
	cfg.Log.Level = "info"
	return &cfg
}

// Load builds the configuration from defaults, an optional YAML file,
// and the given flag set. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}
	return cfg, nil
}
