// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package persist

import (
	"encoding/json"
	"os"
	"sync"

	log "github.com/hpe-storage/tgt-manager/logger"
	"github.com/hpe-storage/tgt-manager/util"
	"github.com/pkg/errors"
)

const DefaultDiskMethodsFile = "/app/config/disk_methods.json"

// DiskMethods records which provisioning method created each disk image, keyed by file name.
// The record is informational; tgtd never reads it.
type DiskMethods struct {
	path string
	mu   sync.Mutex
}

func NewDiskMethods(path string) *DiskMethods {
	return &DiskMethods{path: path}
}

// Load returns every recorded method.  A missing file is an empty record.
func (d *DiskMethods) Load() (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load()
}

func (d *DiskMethods) load() (map[string]string, error) {
	methods := make(map[string]string)
	data, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return methods, nil
		}
		return nil, errors.Wrapf(err, "unable to read %s", d.path)
	}
	if err = json.Unmarshal(data, &methods); err != nil {
		return nil, errors.Wrapf(err, "unable to decode %s", d.path)
	}
	return methods, nil
}

// Get returns the method recorded for fileName, or an empty string
func (d *DiskMethods) Get(fileName string) string {
	methods, err := d.Load()
	if err != nil {
		log.Warnf("Unable to load disk methods, err=%v", err)
		return ""
	}
	return methods[fileName]
}

// Record stores method for fileName, an empty method removes the entry
func (d *DiskMethods) Record(fileName, method string) error {
	log.Tracef(">>>>> Record, fileName=%s, method=%s", fileName, method)
	defer log.Trace("<<<<< Record")

	d.mu.Lock()
	defer d.mu.Unlock()

	methods, err := d.load()
	if err != nil {
		return err
	}
	if method == "" {
		delete(methods, fileName)
	} else {
		methods[fileName] = method
	}
	data, err := json.MarshalIndent(methods, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to encode disk methods")
	}
	return errors.Wrapf(util.FileWriteString(d.path, string(data)), "unable to write %s", d.path)
}
