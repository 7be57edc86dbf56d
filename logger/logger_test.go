// Copyright 2025 Hewlett Packard Enterprise Development LP
package logger

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func getLogFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.log")
}

func logAllLevels(testName string) {
	log.Tracef("%s:%s", testName, log.TraceLevel.String())
	log.Debugf("%s:%s", testName, log.DebugLevel.String())
	log.Infof("%s:%s", testName, log.InfoLevel.String())
	log.Errorf("%s:%s", testName, log.ErrorLevel.String())
	log.Warnf("%s:%s", testName, log.WarnLevel.String())
}

func contains(t *testing.T, logFile, testName, level string) bool {
	b, err := ioutil.ReadFile(logFile)
	assert.Nil(t, err)
	return strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, level))
}

func TestInitLogging(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOG_FORMAT")
	logFile := getLogFile(t)

	// Test1: log to stdout only, no file must be created
	assert.Nil(t, InitLogging("", nil, true))
	logAllLevels("test_stdout_only")
	_, err := os.Stat(logFile)
	assert.True(t, os.IsNotExist(err))

	// Test2: defaults
	assert.Nil(t, InitLogging(logFile, nil, false))
	assert.Equal(t, DefaultLogLevel, log.GetLevel().String())
	testName := "test_default_info_level"
	logAllLevels(testName)
	assert.True(t, contains(t, logFile, testName, "info"))
	assert.True(t, contains(t, logFile, testName, "warning"))
	assert.True(t, contains(t, logFile, testName, "error"))
	assert.False(t, contains(t, logFile, testName, "debug"))
	assert.False(t, contains(t, logFile, testName, "trace"))

	// Test3: param override of trace level
	assert.Nil(t, InitLogging(logFile, &LogParams{Level: "trace"}, false))
	assert.Equal(t, log.TraceLevel.String(), log.GetLevel().String())
	testName = "test_param_override_trace_level"
	logAllLevels(testName)
	assert.True(t, contains(t, logFile, testName, "trace"))
	assert.True(t, contains(t, logFile, testName, "debug"))

	// Test4: env override wins even when params are given
	os.Setenv("LOG_LEVEL", "info")
	defer os.Unsetenv("LOG_LEVEL")
	assert.Nil(t, InitLogging(logFile, &LogParams{Level: "trace"}, false))
	testName = "test_env_override_info_level"
	logAllLevels(testName)
	assert.True(t, contains(t, logFile, testName, "info"))
	assert.False(t, contains(t, logFile, testName, "debug"))

	// Test5: invalid format and file limits fall back to defaults
	os.Setenv("LOG_FORMAT", "yaml")
	defer os.Unsetenv("LOG_FORMAT")
	assert.Nil(t, InitLogging(logFile, &LogParams{MaxFiles: 1000}, false))
	assert.Equal(t, DefaultLogFormat, logParams.GetLogFormat())
	assert.Equal(t, DefaultMaxLogFiles, logParams.GetMaxFiles())
}

func TestSetLevel(t *testing.T) {
	assert.Nil(t, SetLevel("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.NotNil(t, SetLevel("loud"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestScrubber(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"no secrets", []string{"tgtadm", "--op", "show"}, []string{"tgtadm", "--op", "show"}},
		{"separate value", []string{"tgtadm", "--password", "s3cr3t", "--user", "bob"}, []string{"tgtadm", "--password", "**********", "--user", "bob"}},
		{"inline value", []string{"--password=s3cr3t"}, []string{"--password=**********"}},
		{"trailing flag", []string{"--password"}, []string{"--password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]string(nil), tt.args...)
			assert.Equal(t, tt.want, Scrubber(input))
			assert.Equal(t, tt.args, input)
		})
	}
}

func TestSourceField(t *testing.T) {
	hook := test.NewGlobal()
	defer log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	log.SetLevel(log.InfoLevel)

	Infof("%s", "sourced")
	entry := hook.LastEntry()
	if assert.NotNil(t, entry) {
		assert.True(t, strings.HasPrefix(entry.Data["file"].(string), "logger_test.go:"), entry.Data["file"])
	}

	// entries built once and logged later carry only the given fields
	WithFields(Fields{"operation": "CreateTarget"}).Info("started")
	entry = hook.LastEntry()
	if assert.NotNil(t, entry) {
		_, ok := entry.Data["file"]
		assert.False(t, ok)
		assert.Equal(t, "CreateTarget", entry.Data["operation"])
	}
}
