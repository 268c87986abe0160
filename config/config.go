// Package config loads actorcore's process configuration (§6): worker
// count, harbor id, profiling flag, module/bootstrap/logger paths, and an
// optional daemon pidfile.
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (ACTORCORE_* prefix)
//  2. YAML/TOML/JSON config file, if --config_file is given
//  3. Hardcoded defaults
//
// Grounded on jroosing-HydraDNS/internal/config/config.go's
// initConfig/setDefaults/loadFromSource shape, since the teacher repo
// references a config.LoadConfig() it does not ship.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration described in §6.
type Config struct {
	Thread     int    // number of worker threads
	Harbor     uint8  // 0-255, cluster node id; 0 == local-only
	Profile    bool   // enable per-context CPU accounting
	ModulePath string // search path for the external module loader
	Bootstrap  string // name of the bootstrap service
	Logger     string // log file path, "" == stderr
	LogService string // name of the external logger service
	Daemon     string // pidfile path; "" == foreground

	LogLevel string // startup level; later file edits are reported by WatchLogLevel, not applied

	// Ambient-stack additions beyond the original §6 table (SPEC_FULL.md
	// DOMAIN STACK): admin surfaces and optional Consul self-registration.
	AdminHTTPAddr string
	AdminGRPCAddr string
	ConsulAddr    string // "" disables self-registration
}

// LoadConfig reads configuration from configPath (may be empty) overlaid
// with ACTORCORE_* environment variables and hardcoded defaults.
func LoadConfig(configPath string) (*Config, error) {
	v, err := initViper(configPath)
	if err != nil {
		return nil, err
	}
	return fromViper(v), nil
}

func initViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ACTORCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("thread", 8)
	v.SetDefault("harbor", 0)
	v.SetDefault("profile", false)
	v.SetDefault("module_path", "./service/?.so")
	v.SetDefault("bootstrap", "")
	v.SetDefault("logger", "")
	v.SetDefault("logservice", "logger")
	v.SetDefault("daemon", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("admin_http_addr", "127.0.0.1:9090")
	v.SetDefault("admin_grpc_addr", "127.0.0.1:9091")
	v.SetDefault("consul_addr", "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Thread:     v.GetInt("thread"),
		Harbor:     uint8(v.GetUint32("harbor")),
		Profile:    v.GetBool("profile"),
		ModulePath: v.GetString("module_path"),
		Bootstrap:  v.GetString("bootstrap"),
		Logger:     v.GetString("logger"),
		LogService: v.GetString("logservice"),
		Daemon:     v.GetString("daemon"),
		LogLevel:   v.GetString("log_level"),

		AdminHTTPAddr: v.GetString("admin_http_addr"),
		AdminGRPCAddr: v.GetString("admin_grpc_addr"),
		ConsulAddr:    v.GetString("consul_addr"),
	}
}

// WatchLogLevel re-reads configPath whenever it is written or created on
// disk and invokes onChange with the file's log_level. It does not modify
// any Config or logger itself. Thread/Harbor are process-lifetime
// constants per §5 and are deliberately not watched.
func WatchLogLevel(configPath string, onChange func(level string)) (*fsnotify.Watcher, error) {
	if configPath == "" {
		return nil, nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	if err := w.Add(configPath); err != nil {
		w.Close()
		return nil, fmt.Errorf("config: watch %s: %w", configPath, err)
	}

	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			v, err := initViper(configPath)
			if err != nil {
				continue
			}
			onChange(v.GetString("log_level"))
		}
	}()

	return w, nil
}
