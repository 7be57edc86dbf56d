// (c) Copyright 2025 Hewlett Packard Enterprise Development LP

package util

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	assert.Nil(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name       string
		path       string
		wantExists bool
		wantDir    bool
	}{
		{"dir", dir, true, true},
		{"file", file, true, false},
		{"missing", filepath.Join(dir, "missing"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, isDir, err := FileExists(tt.path)
			assert.Nil(t, err)
			assert.Equal(t, tt.wantExists, exists)
			assert.Equal(t, tt.wantDir, isDir)
		})
	}
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()
	empty, err := IsDirEmpty(dir)
	assert.Nil(t, err)
	assert.True(t, empty)

	empty, err = IsDirEmpty(filepath.Join(dir, "missing"))
	assert.Nil(t, err)
	assert.True(t, empty)

	assert.Nil(t, FileWriteString(filepath.Join(dir, "a", "b.conf"), "x"))
	empty, err = IsDirEmpty(dir)
	assert.Nil(t, err)
	assert.False(t, empty)
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "durable")

	assert.Nil(t, FileWriteString(filepath.Join(src, "targets.conf"), "include /etc/tgt/conf.d/*.conf\n"))
	assert.Nil(t, FileWriteString(filepath.Join(src, "conf.d", "docker.conf"), "<target iqn.a>\n</target>\n"))
	assert.Nil(t, os.Symlink("targets.conf", filepath.Join(src, "link.conf")))
	assert.Nil(t, os.MkdirAll(dst, 0755))
	assert.Nil(t, FileWriteString(filepath.Join(dst, "conf.d", "docker.conf"), "stale"))

	assert.Nil(t, CopyDir(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "conf.d", "docker.conf"))
	assert.Nil(t, err)
	assert.Equal(t, "<target iqn.a>\n</target>\n", string(data))
	data, err = os.ReadFile(filepath.Join(dst, "targets.conf"))
	assert.Nil(t, err)
	assert.Equal(t, "include /etc/tgt/conf.d/*.conf\n", string(data))
	link, err := os.Readlink(filepath.Join(dst, "link.conf"))
	assert.Nil(t, err)
	assert.Equal(t, "targets.conf", link)

	assert.NotNil(t, CopyDir(filepath.Join(src, "missing"), dst))
}

func TestDiskFreeBytes(t *testing.T) {
	free, err := DiskFreeBytes(t.TempDir())
	assert.Nil(t, err)
	assert.True(t, free > 0)
}

func TestInitializeRouter(t *testing.T) {
	router := mux.NewRouter().StrictSlash(true)
	InitializeRouter(router, []Route{
		{
			Name:    "Ping",
			Method:  "GET",
			Pattern: "/ping/{id}",
			HandlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(mux.Vars(r)["id"]))
			},
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ping/42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/ping/42", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFileWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "tgt-manager.json")
	assert.Nil(t, FileWriteString(file, "{}"))

	fired := make(chan struct{}, 10)
	watch, err := InitializeWatcher(func() { fired <- struct{}{} }, 0)
	assert.Nil(t, err)
	assert.NotNil(t, watch.AddWatchList(nil))
	assert.Nil(t, watch.AddWatchList([]string{dir}))
	go watch.StartWatcher()
	defer watch.Stop()

	assert.Nil(t, FileWriteString(file, `{"listen":":9000"}`))
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Error("watcher did not fire")
	}
}

func TestFileWatchStopWaitsForWatcher(t *testing.T) {
	dir := t.TempDir()
	watch, err := InitializeWatcher(func() {}, 0)
	assert.Nil(t, err)
	assert.Nil(t, watch.AddWatchList([]string{dir}))

	go watch.StartWatcher()
	watch.Stop()

	// the watcher closes its inotify instance before returning
	assert.NotNil(t, watch.watchList.Add(dir))
}
