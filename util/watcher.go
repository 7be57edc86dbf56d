// Copyright 2025 Hewlett Packard Enterprise Development LP

package util

import (
	"fmt"
	"os"
	"sync"
	"time"

	notify "github.com/fsnotify/fsnotify"
	log "github.com/hpe-storage/tgt-manager/logger"
)

// DefaultWatchDebounce is the quiet period after a notification during which further events
// are dropped.  Editors tend to produce several writes per save.
const DefaultWatchDebounce = 2 * time.Second

// FileWatch contains watcher attributes.
type FileWatch struct {
	// Channel to receive the stop event.
	watchStop chan struct{}
	// fsnotify watcher.
	watchList *notify.Watcher
	// Anonymous function.
	watchRun func()
	// Debounce period
	debounce time.Duration
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// InitializeWatcher is used to initialize fileWatch with anonymous function and new watcher.
func InitializeWatcher(job func(), debounce time.Duration) (*FileWatch, error) {
	log.Trace(">>>>> InitializeWatcher")
	defer log.Trace("<<<<< InitializeWatcher")
	watcher, err := notify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FileWatch{
		watchStop: make(chan struct{}),
		watchList: watcher,
		watchRun:  job,
		debounce:  debounce,
	}
	// released by StartWatcher, which callers usually run with go
	w.wg.Add(1)
	return w, nil
}

// AddWatchList list of files /and directories to watch
func (w *FileWatch) AddWatchList(files []string) error {
	log.Trace(">>>>> AddWatchList")
	defer log.Trace("<<<<< AddWatchList")

	if len(files) == 0 {
		return fmt.Errorf("empty watch list is not supported, there should be at least one file to watch")
	}

	for _, fPath := range files {
		err := w.watchList.Add(fPath)
		if err != nil {
			log.Warnf("Failed to add [%s] file to watch list, err %s :", fPath, err.Error())
		} else {
			log.Tracef("Successfully added [%s] file to watch list", fPath)
		}
	}
	return nil
}

// StartWatcher runs the job on every write or create event until Stop is called.  It must be
// called exactly once per watcher.
func (w *FileWatch) StartWatcher() {
	log.Trace(">>>>> StartWatcher")
	defer log.Trace("<<<<< StartWatcher")
	defer w.wg.Done()

	pid := os.Getpid()
	log.Tracef("Watcher [%d PID] successful started", pid)
	var last time.Time
	for {
		select {
		case <-w.watchStop:
			log.Infof("Stopping [%d PID] config watcher", pid)
			w.watchList.Close()
			return
		case err, ok := <-w.watchList.Errors:
			if !ok {
				return
			}
			log.Warnf("Watcher [%d PID], err=%v", pid, err)
		case event, ok := <-w.watchList.Events:
			if !ok {
				return
			}
			if event.Op&(notify.Write|notify.Create) == 0 {
				continue
			}
			if time.Since(last) < w.debounce {
				log.Tracef("Watcher [%d PID], dropping %s", pid, event)
				continue
			}
			last = time.Now()
			log.Infof("Watcher [%d PID], received notification %s", pid, event)
			w.watchRun()
		}
	}
}

// Stop ends StartWatcher and waits for it to return
func (w *FileWatch) Stop() {
	log.Trace(">>>>> Stop")
	defer log.Trace("<<<<< Stop")
	w.stopOnce.Do(func() { close(w.watchStop) })
	w.wg.Wait()
}
