// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hpe-storage/tgt-manager/config"
	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/tgt"
	"github.com/hpe-storage/tgt-manager/tgt/executor"
	"github.com/hpe-storage/tgt-manager/tgt/orchestrator"
	"github.com/hpe-storage/tgt-manager/tgt/perf"
	"github.com/hpe-storage/tgt-manager/tgt/persist"
	"github.com/hpe-storage/tgt-manager/tgt/snapshot"
	"github.com/hpe-storage/tgt-manager/tgt/tgtadm"
	"github.com/hpe-storage/tgt-manager/util"
	"github.com/opentracing/opentracing-go"
	"github.com/spf13/cobra"
)

const serviceName = "tgt-manager"

var (
	configFile string
	listen     string

	// replaced in tests
	newExecutor = func() executor.Executor { return executor.NewShellExecutor() }
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Manage iSCSI targets, LUNs and ACLs of a tgtd daemon",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile,
		"JSON configuration file, ignored if the default file does not exist")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	serve.Flags().StringVarP(&listen, "listen", "l", "", "listen address, overrides the configuration")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print every target as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(out)
		},
	}

	persistCmd := &cobra.Command{
		Use:   "persist",
		Short: "Save the live tgtd configuration to durable storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPersist()
		},
	}

	root.AddCommand(serve, show, persistCmd)
	return root
}

// loadConfig reads the configuration file.  A missing default file means built in defaults.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == config.DefaultConfigFile {
		if exists, _, _ := util.FileExists(path); !exists {
			path = ""
		}
	}
	return config.Load(path)
}

// components holds everything built from one configuration
type components struct {
	bridge       *persist.Bridge
	orchestrator *orchestrator.Orchestrator
}

func newComponents(c *config.Config) *components {
	e := newExecutor()
	commands := tgtadm.New(c.Tgtadm, c.TgtAdmin, c.LLD)

	snap := snapshot.NewService(e, commands)
	snap.Attempts = c.SnapshotAttempts
	snap.Delay = c.SnapshotDelay

	bridge := persist.NewBridge(e, commands, c.Persist)
	o := orchestrator.New(e, commands, snap, bridge, persist.NewDiskMethods(c.DiskMethodsFile), orchestrator.Options{
		Compensate:  c.Compensate,
		DiskDir:     c.DiskDir,
		DurableDir:  c.Persist.DurableConfigDir,
		DefaultIQNs: c.DefaultIQNs(),
		Monitor:     perf.NewMonitor(e, c.Performance),
	})
	return &components{bridge: bridge, orchestrator: o}
}

func runServe() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	if listen != "" {
		c.Listen = listen
	}
	if err = log.InitLogging(c.Log.File, &c.Log, true); err != nil {
		return err
	}
	log.Infof(">>>>> %s serve, listen=%v", serviceName, c.Listen)
	defer log.Infof("<<<<< %s serve", serviceName)

	if c.Tracing {
		tracer, closer, err := log.InitOpentracing(serviceName)
		if err != nil {
			log.Warnf("Tracing disabled, err=%v", err)
		} else {
			opentracing.SetGlobalTracer(tracer)
			defer closer.Close()
		}
	}

	parts := newComponents(c)
	server := &tgt.Server{}
	if err = server.Start(c.Listen, parts.orchestrator); err != nil {
		return err
	}
	defer server.Stop()

	if watcher := watchConfig(); watcher != nil {
		go watcher.StartWatcher()
		defer watcher.Stop()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Infof("Received %v, shutting down", sig)
	return nil
}

// watchConfig reapplies the log level whenever the configuration file changes
func watchConfig() *util.FileWatch {
	if exists, _, _ := util.FileExists(configFile); !exists {
		return nil
	}
	watcher, err := util.InitializeWatcher(reloadLogLevel, util.DefaultWatchDebounce)
	if err != nil {
		log.Warnf("Configuration changes will not be applied, err=%v", err)
		return nil
	}
	if err = watcher.AddWatchList([]string{configFile}); err != nil {
		log.Warnf("Configuration changes will not be applied, err=%v", err)
		return nil
	}
	return watcher
}

func reloadLogLevel() {
	c, err := config.Load(configFile)
	if err != nil {
		log.Errorf("Ignoring configuration change, err=%v", err)
		return
	}
	if err = log.SetLevel(c.Log.GetLevel()); err != nil {
		log.Errorf("Unable to set log level %s, err=%v", c.Log.Level, err)
		return
	}
	log.Infof("Log level set to %s", c.Log.GetLevel())
}

func runShow(out io.Writer) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	result := newComponents(c).orchestrator.ListTargets()
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "    ")
	if err = encoder.Encode(result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}

func runPersist() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	return newComponents(c).bridge.Persist()
}
