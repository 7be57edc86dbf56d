// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

// Package persist saves the live tgtd configuration so targets survive a daemon or container
// restart.  tgtd keeps its state in memory; tgt-admin --dump renders it in targets.conf syntax.
package persist

import (
	"strings"
	"sync"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt/executor"
	"github.com/hpe-storage/tgt-manager/tgt/tgtadm"
	"github.com/hpe-storage/tgt-manager/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDumpFile         = "/etc/tgt/conf.d/docker.conf"
	DefaultConfigDir        = "/etc/tgt"
	DefaultStateDir         = "/var/lib/tgt"
	DefaultDurableConfigDir = "/app/config/tgt"
	DefaultDurableStateDir  = "/app/config/tgt_lib"
)

// dump lines starting with any of these are dropped
var noisePrefixes = []string{">", "default-driver"}

// Paths locates the canonical dump file and the directories copied to durable storage
type Paths struct {
	DumpFile         string `mapstructure:"dumpFile"`
	ConfigDir        string `mapstructure:"configDir"`
	StateDir         string `mapstructure:"stateDir"`
	DurableConfigDir string `mapstructure:"durableConfigDir"`
	DurableStateDir  string `mapstructure:"durableStateDir"`
}

// DefaultPaths returns the locations used by the tgt container image
func DefaultPaths() Paths {
	return Paths{
		DumpFile:         DefaultDumpFile,
		ConfigDir:        DefaultConfigDir,
		StateDir:         DefaultStateDir,
		DurableConfigDir: DefaultDurableConfigDir,
		DurableStateDir:  DefaultDurableStateDir,
	}
}

// Bridge dumps the live configuration and copies it to durable storage
type Bridge struct {
	exec     executor.Executor
	commands *tgtadm.Commands
	paths    Paths

	// one persist at a time, concurrent copies into the same tree would interleave
	mu sync.Mutex
}

// NewBridge returns a Bridge writing to paths
func NewBridge(e executor.Executor, commands *tgtadm.Commands, paths Paths) *Bridge {
	if commands == nil {
		commands = tgtadm.Default()
	}
	return &Bridge{exec: e, commands: commands, paths: paths}
}

// Persist writes the filtered dump to the canonical file, then copies the config directory and,
// when it exists and is not empty, the state directory into their durable locations.
func (b *Bridge) Persist() error {
	log.Trace(">>>>> Persist")
	defer log.Trace("<<<<< Persist")

	b.mu.Lock()
	defer b.mu.Unlock()

	result := b.exec.Execute(b.commands.Dump())
	if !result.Success {
		return errors.Errorf("tgt-admin dump failed: %s", result.Error)
	}
	if err := util.FileWriteString(b.paths.DumpFile, FilterDump(result.Output)); err != nil {
		return errors.Wrapf(err, "unable to write %s", b.paths.DumpFile)
	}
	log.Infof("Saved tgtd configuration to %s", b.paths.DumpFile)

	var g errgroup.Group
	g.Go(func() error {
		return errors.Wrapf(util.CopyDir(b.paths.ConfigDir, b.paths.DurableConfigDir),
			"unable to copy %s to %s", b.paths.ConfigDir, b.paths.DurableConfigDir)
	})
	g.Go(func() error {
		if b.paths.StateDir == "" {
			return nil
		}
		exists, isDir, err := util.FileExists(b.paths.StateDir)
		if err != nil {
			return errors.Wrapf(err, "unable to stat %s", b.paths.StateDir)
		}
		if !exists || !isDir {
			log.Debugf("%s not present, skipping", b.paths.StateDir)
			return nil
		}
		empty, err := util.IsDirEmpty(b.paths.StateDir)
		if err != nil {
			return errors.Wrapf(err, "unable to read %s", b.paths.StateDir)
		}
		if empty {
			log.Debugf("%s is empty, skipping", b.paths.StateDir)
			return nil
		}
		return errors.Wrapf(util.CopyDir(b.paths.StateDir, b.paths.DurableStateDir),
			"unable to copy %s to %s", b.paths.StateDir, b.paths.DurableStateDir)
	})
	return g.Wait()
}

// FilterDump drops the lines of a tgt-admin dump that only carry defaults
func FilterDump(dump string) string {
	lines := strings.Split(dump, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isNoise(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isNoise(line string) bool {
	for _, prefix := range noisePrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
