// Package config loads reldb's engine configuration from an HCL file,
// following leftmike-maho's config package: decode into a generic
// map[string]interface{}, then assign known fields, erroring on anything
// unrecognized.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl"
)

// Engine holds the knobs the buffer pool, hash index, and lock manager
// read at startup.
type Engine struct {
	PoolSize          int    `hcl:"pool_size"`
	NumInstances      int    `hcl:"num_instances"`
	ReplacerPolicy    string `hcl:"replacer_policy"` // "lru" or "clock"
	DefaultIsolation  string `hcl:"default_isolation"`
	DataFile          string `hcl:"data_file"`
	LogLevel          string `hcl:"log_level"`
	MetricsListenAddr string `hcl:"metrics_listen_addr"`
}

// Default mirrors array-db's util.DefaultOptions: sane values a caller can
// override piecemeal.
func Default() Engine {
	return Engine{
		PoolSize:          1024,
		NumInstances:      4,
		ReplacerPolicy:    "lru",
		DefaultIsolation:  "REPEATABLE_READ",
		DataFile:          "reldb.dat",
		LogLevel:          "info",
		MetricsListenAddr: "",
	}
}

// Load reads an HCL file at path and overlays it onto Default(). A
// variable present in the file but unknown to Engine is an error, same as
// maho's loadConfig.
func Load(path string) (Engine, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]interface{}
	if err := hcl.Decode(&raw, string(b)); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}

	for name, val := range raw {
		if err := assign(&cfg, name, val); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return cfg, nil
}

func assign(cfg *Engine, name string, val interface{}) error {
	switch name {
	case "pool_size":
		n, err := asInt(val)
		if err != nil {
			return err
		}
		cfg.PoolSize = n
	case "num_instances":
		n, err := asInt(val)
		if err != nil {
			return err
		}
		cfg.NumInstances = n
	case "replacer_policy":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		cfg.ReplacerPolicy = s
	case "default_isolation":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		cfg.DefaultIsolation = s
	case "data_file":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		cfg.DataFile = s
	case "log_level":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		cfg.LogLevel = s
	case "metrics_listen_addr":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		cfg.MetricsListenAddr = s
	default:
		return fmt.Errorf("%s is not a config variable", name)
	}
	return nil
}

func asInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer")
	}
}
