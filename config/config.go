// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package config loads the tgt-manager daemon configuration.  Values come from the built in
// defaults, then an optional JSON file, then TGT_MANAGER_* environment variables.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/perf"
	"github.com/hpe-storage/tgt-manager/tgt/persist"
	"github.com/hpe-storage/tgt-manager/tgt/snapshot"
	"github.com/hpe-storage/tgt-manager/tgt/tgtadm"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const (
	DefaultConfigFile = "/app/config/tgt-manager.json"
	DefaultListen     = ":5000"
	DefaultDiskDir    = "/app/iscsi"
	DefaultLogFile    = "/app/config/tgt-manager.log"
	DefaultIQN        = "iqn.2025-05.com.example:target1"

	// TargetIQNEnv names the IQN the container was started with
	TargetIQNEnv = "TARGET_IQN_ENV"

	envPrefix = "TGT_MANAGER_"
)

// Config is the daemon configuration
type Config struct {
	Listen           string        `mapstructure:"listen"`
	Tgtadm           string        `mapstructure:"tgtadm"`
	TgtAdmin         string        `mapstructure:"tgtAdmin"`
	LLD              string        `mapstructure:"lld"`
	SnapshotAttempts int           `mapstructure:"snapshotAttempts"`
	SnapshotDelay    time.Duration `mapstructure:"snapshotDelay"`
	Persist          persist.Paths `mapstructure:"persist"`
	DiskDir          string        `mapstructure:"diskDir"`
	DiskMethodsFile  string        `mapstructure:"diskMethodsFile"`
	Performance      perf.Paths    `mapstructure:"performance"`
	Log              log.LogParams `mapstructure:"log"`
	Tracing          bool          `mapstructure:"tracing"`
	Compensate       bool          `mapstructure:"compensate"`
	DefaultIQN       string        `mapstructure:"defaultIQN"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Listen:           DefaultListen,
		Tgtadm:           tgtadm.DefaultTgtadm,
		TgtAdmin:         tgtadm.DefaultTgtAdmin,
		LLD:              tgtadm.DefaultLLD,
		SnapshotAttempts: snapshot.DefaultAttempts,
		SnapshotDelay:    snapshot.DefaultDelay,
		Persist:          persist.DefaultPaths(),
		DiskDir:          DefaultDiskDir,
		DiskMethodsFile:  persist.DefaultDiskMethodsFile,
		Performance:      perf.DefaultPaths(),
		Log: log.LogParams{
			Level:      log.DefaultLogLevel,
			File:       DefaultLogFile,
			MaxFiles:   log.DefaultMaxLogFiles,
			MaxSizeMiB: log.DefaultMaxLogSize,
			Format:     log.DefaultLogFormat,
		},
		DefaultIQN: DefaultIQN,
	}
}

// Load returns the defaults overlaid with the JSON file at path (if path is not empty) and the
// environment.  Keys missing from the file keep their default.
func Load(path string) (*Config, error) {
	log.Tracef(">>>>> Load, path=%v", path)
	defer log.Trace("<<<<< Load")

	c := Default()
	if path != "" {
		values, err := readJSON(path)
		if err != nil {
			return nil, err
		}
		if err := c.decode(values); err != nil {
			return nil, errors.Wrapf(err, "invalid configuration in %s", path)
		}
	}
	c.applyEnv()
	return c, nil
}

func readJSON(path string) (map[string]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open configuration %s", path)
	}
	defer file.Close()

	values := make(map[string]interface{})
	if err := json.NewDecoder(file).Decode(&values); err != nil {
		return nil, errors.Wrapf(err, "unable to parse configuration %s", path)
	}
	return values, nil
}

func (c *Config) decode(values map[string]interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           c,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(values)
}

func (c *Config) applyEnv() {
	stringEnv := map[string]*string{
		"LISTEN":            &c.Listen,
		"TGTADM":            &c.Tgtadm,
		"TGT_ADMIN":         &c.TgtAdmin,
		"DISK_DIR":          &c.DiskDir,
		"DISK_METHODS_FILE": &c.DiskMethodsFile,
		"DUMP_FILE":         &c.Persist.DumpFile,
		"MONITOR_SCRIPT":    &c.Performance.MonitorScript,
		"OPTIMIZE_SCRIPT":   &c.Performance.OptimizeScript,
		"PERF_RESULTS_FILE": &c.Performance.ResultsFile,
	}
	for name, field := range stringEnv {
		if value := os.Getenv(envPrefix + name); value != "" {
			*field = value
		}
	}

	boolEnv := map[string]*bool{
		"COMPENSATE": &c.Compensate,
		"TRACING":    &c.Tracing,
	}
	for name, field := range boolEnv {
		value := os.Getenv(envPrefix + name)
		if value == "" {
			continue
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			log.Warnf("Ignoring %s%s=%q, err=%v", envPrefix, name, value, err)
			continue
		}
		*field = b
	}
}

// DefaultIQNs returns the IQNs offered to clients creating a target: the configured default and,
// when set, the one from TARGET_IQN_ENV
func (c *Config) DefaultIQNs() map[string]string {
	iqns := map[string]string{}
	if c.DefaultIQN != "" {
		iqns["default"] = c.DefaultIQN
	}
	if env := os.Getenv(TargetIQNEnv); env != "" {
		iqns["env"] = env
	}
	return iqns
}
