// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "tgt-manager.json")
	assert.Nil(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	assert.Nil(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, "tgtadm", c.Tgtadm)
	assert.Equal(t, 3, c.SnapshotAttempts)
	assert.Equal(t, "/etc/tgt/conf.d/docker.conf", c.Persist.DumpFile)
	assert.Equal(t, "/tmp/iscsi_performance.json", c.Performance.ResultsFile)
	assert.Equal(t, "/app/config/optimize/monitor_lun_performance.sh", c.Performance.MonitorScript)
	assert.False(t, c.Compensate)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"listen": "127.0.0.1:8080",
		"snapshotAttempts": "5",
		"snapshotDelay": "250ms",
		"persist": {"dumpFile": "/tmp/tgt.conf"},
		"log": {"level": "debug"},
		"performance": {"optimizeScript": "/usr/local/bin/optimize_lun.sh"},
		"compensate": true
	}`)
	c, err := Load(path)
	assert.Nil(t, err)
	assert.Equal(t, "127.0.0.1:8080", c.Listen)
	assert.Equal(t, 5, c.SnapshotAttempts)
	assert.Equal(t, 250*time.Millisecond, c.SnapshotDelay)
	assert.Equal(t, "/tmp/tgt.conf", c.Persist.DumpFile)
	// unset keys keep their defaults
	assert.Equal(t, "/etc/tgt", c.Persist.ConfigDir)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, DefaultLogFile, c.Log.File)
	assert.Equal(t, "/usr/local/bin/optimize_lun.sh", c.Performance.OptimizeScript)
	assert.Equal(t, "/tmp/iscsi_performance.json", c.Performance.ResultsFile)
	assert.True(t, c.Compensate)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `listen = ":80"`},
		{"unknown key", `{"listenAddress": ":80"}`},
		{"bad duration", `{"snapshotDelay": "soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.NotNil(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.NotNil(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TGT_MANAGER_LISTEN", ":9000")
	t.Setenv("TGT_MANAGER_DISK_DIR", "/srv/disks")
	t.Setenv("TGT_MANAGER_COMPENSATE", "true")
	t.Setenv("TGT_MANAGER_TRACING", "maybe")
	t.Setenv("TGT_MANAGER_PERF_RESULTS_FILE", "/run/perf.json")

	c, err := Load(writeConfig(t, `{"listen": ":7000", "tracing": true}`))
	assert.Nil(t, err)
	assert.Equal(t, ":9000", c.Listen)
	assert.Equal(t, "/srv/disks", c.DiskDir)
	assert.True(t, c.Compensate)
	assert.Equal(t, "/run/perf.json", c.Performance.ResultsFile)
	// unparsable values are ignored
	assert.True(t, c.Tracing)
}

func TestDefaultIQNs(t *testing.T) {
	c := Default()
	t.Setenv(TargetIQNEnv, "")
	assert.Equal(t, map[string]string{"default": DefaultIQN}, c.DefaultIQNs())

	t.Setenv(TargetIQNEnv, "iqn.2025-05.com.example:env")
	assert.Equal(t, map[string]string{"default": DefaultIQN, "env": "iqn.2025-05.com.example:env"}, c.DefaultIQNs())

	c.DefaultIQN = ""
	assert.Equal(t, map[string]string{"env": "iqn.2025-05.com.example:env"}, c.DefaultIQNs())
}
