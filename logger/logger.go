// Copyright 2025 Hewlett Packard Enterprise Development LP

package logger

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"github.com/uber/jaeger-client-go/config"
	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = TextFormat
	DefaultMaxLogFiles = 10
	MaxFilesLimit      = 20
	DefaultMaxLogSize  = 100  // in MB
	MaxLogSizeLimit    = 1024 // in MB
	JSONFormat         = "json"
	TextFormat         = "text"
)

// LogParams to configure logging
type LogParams struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxFiles   int    `mapstructure:"maxFiles"`
	MaxSizeMiB int    `mapstructure:"maxSizeMiB"`
	Format     string `mapstructure:"format"`
}

var (
	logParams LogParams
	initMutex sync.Mutex
)

func (l LogParams) isValidLevel() bool {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func (l LogParams) isValidLogFormat() bool {
	return l.Format == JSONFormat || l.Format == TextFormat
}

func (l LogParams) isValidMaxLogFiles() bool {
	if l.MaxFiles <= 0 || l.MaxFiles > MaxFilesLimit {
		return false
	}
	return true
}

func (l LogParams) isValidMaxLogSize() bool {
	if l.MaxSizeMiB <= 0 || l.MaxSizeMiB > MaxLogSizeLimit {
		return false
	}
	return true
}

func (l LogParams) GetLevel() string {
	if !l.isValidLevel() {
		return DefaultLogLevel
	}
	return l.Level
}

func (l LogParams) GetFile() string {
	return l.File
}

func (l LogParams) GetMaxFiles() int {
	if !l.isValidMaxLogFiles() {
		return DefaultMaxLogFiles
	}
	return l.MaxFiles
}

func (l LogParams) GetMaxSize() int {
	if !l.isValidMaxLogSize() {
		return DefaultMaxLogSize
	}
	return l.MaxSizeMiB
}

func (l LogParams) GetLogFormat() string {
	if !l.isValidLogFormat() {
		return DefaultLogFormat
	}
	return l.Format
}

func (l LogParams) UseJsonFormatter() bool {
	return l.GetLogFormat() == JSONFormat
}

type Fields = log.Fields

// Entry is a log entry carrying fields, see WithFields
type Entry = log.Entry

func updateLogParamsFromEnv() {
	level := os.Getenv("LOG_LEVEL")
	if level != "" {
		logParams.Level = level
	}

	logFile := os.Getenv("LOG_FILE")
	if logFile != "" {
		logParams.File = logFile
	}

	maxSize := os.Getenv("LOG_MAX_SIZE")
	if maxSize != "" {
		size, err := strconv.ParseInt(maxSize, 0, 0)
		if err == nil {
			logParams.MaxSizeMiB = int(size)
		}
	}

	maxFiles := os.Getenv("LOG_MAX_FILES")
	if maxFiles != "" {
		fileCount, err := strconv.ParseInt(maxFiles, 0, 0)
		if err == nil {
			logParams.MaxFiles = int(fileCount)
		}
	}

	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat != "" {
		logParams.Format = logFormat
	}
}

// InitOpentracing creates a jaeger tracer reporting spans for the given service
func InitOpentracing(service string) (opentracing.Tracer, io.Closer, error) {
	cfg := &config.Configuration{
		ServiceName: service,
		Sampler: &config.SamplerConfig{
			Type:  "const",
			Param: 1,
		},
		Reporter: &config.ReporterConfig{
			LogSpans: true,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot init tracing: %v", err)
	}
	return tracer, closer, nil
}

// InitLogging initializes logging with given params.  Hooks added by a previous call are replaced.
func InitLogging(logName string, params *LogParams, alsoLogToStderr bool) (err error) {
	initMutex.Lock()
	defer initMutex.Unlock()

	// if logParams is not provided, then initialize from defaults
	if params == nil {
		logParams = LogParams{
			Level:      DefaultLogLevel,
			MaxSizeMiB: DefaultMaxLogSize,
			MaxFiles:   DefaultMaxLogFiles,
			Format:     DefaultLogFormat,
		}
	} else {
		logParams = *params
	}

	if logName != "" {
		logParams.File = logName
	}

	// check any overrides from env and apply
	updateLogParamsFromEnv()

	// No output except for the hooks
	log.SetOutput(ioutil.Discard)
	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))

	if logParams.GetFile() != "" {
		err = AddFileHook()
		if err != nil {
			return err
		}
	}
	if alsoLogToStderr {
		AddConsoleHook()
	}

	err = SetLevel(logParams.GetLevel())
	if err != nil {
		return err
	}

	// Remind users where the log file lives
	log.WithFields(log.Fields{
		"logLevel":        log.GetLevel().String(),
		"logFileLocation": logParams.GetFile(),
		"alsoLogToStderr": alsoLogToStderr,
	}).Info("Initialized logging.")

	return nil
}

// SetLevel changes the level of the standard logger, used when the configuration is reloaded
func SetLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// StartSpan starts a span on the global tracer, tagged with the given fields
func StartSpan(operation string, fields Fields) opentracing.Span {
	span := opentracing.StartSpan(operation)
	for k, v := range fields {
		span.SetTag(k, v)
	}
	return span
}

func AddConsoleHook() {
	log.AddHook(NewConsoleHook())
}

func AddFileHook() error {
	logFileHook, err := NewFileHook()
	if err != nil {
		return fmt.Errorf("could not initialize logging to file %s: %v", logParams.GetFile(), err)
	}
	log.AddHook(logFileHook)
	return nil
}

// ConsoleHook sends log entries to stdout.
type ConsoleHook struct {
	formatter log.Formatter
}

// NewConsoleHook creates a new log hook for writing to stdout/stderr.
func NewConsoleHook() *ConsoleHook {
	if logParams.UseJsonFormatter() {
		return &ConsoleHook{&log.JSONFormatter{CallerPrettyfier: CustomCallerPrettyfier}}
	}
	return &ConsoleHook{&log.TextFormatter{FullTimestamp: true, CallerPrettyfier: CustomCallerPrettyfier}}
}

func (hook *ConsoleHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *ConsoleHook) checkIfTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return terminal.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func (hook *ConsoleHook) Fire(entry *log.Entry) error {
	var logWriter io.Writer = os.Stdout
	switch entry.Level {
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		logWriter = os.Stderr
	}

	if textFormatter, ok := hook.formatter.(*log.TextFormatter); ok {
		textFormatter.ForceColors = hook.checkIfTerminal(logWriter)
	}

	lineBytes, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read entry, %v", err)
		return err
	}
	logWriter.Write(lineBytes)
	return nil
}

// FileHook sends log entries to a rotated file.
type FileHook struct {
	formatter log.Formatter
	mutex     sync.Mutex
	logWriter io.Writer
}

func CustomCallerPrettyfier(f *runtime.Frame) (string, string) {
	s := strings.Split(f.Function, ".")
	funcname := s[len(s)-1]
	_, filename := path.Split(f.File)
	return funcname, filename
}

// NewFileHook creates a new log hook for writing to a file.
func NewFileHook() (*FileHook, error) {
	hook := &FileHook{formatter: &log.TextFormatter{FullTimestamp: true}}
	if logParams.UseJsonFormatter() {
		hook.formatter = &log.JSONFormatter{}
	}

	// make sure the log directory exists before lumberjack opens the file
	if dir := path.Dir(logParams.GetFile()); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	// use lumberjack for log rotation
	hook.logWriter = &lumberjack.Logger{
		Filename:   logParams.GetFile(),
		MaxSize:    logParams.GetMaxSize(),
		MaxBackups: logParams.GetMaxFiles(),
		MaxAge:     30,
		Compress:   true,
	}
	return hook, nil
}

func (hook *FileHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *FileHook) Fire(entry *log.Entry) error {
	lineBytes, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read log entry. %v", err)
		return err
	}

	hook.mutex.Lock()
	defer hook.mutex.Unlock()
	_, err = hook.logWriter.Write(lineBytes)
	return err
}

// WithFields creates an entry from the standard logger and adds multiple fields to it.  The
// entry is usually kept and logged from elsewhere, so no file field is attached.
func WithFields(fields Fields) *log.Entry {
	return log.WithFields(fields)
}

// HTTPLogger : wrapper for http logging
func HTTPLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panicked := true
		defer func() {
			if panicked {
				const size = 64 << 10
				buf := make([]byte, size)
				buf = buf[:runtime.Stack(buf, false)]
				log.Errorf("HTTPLogger: panic serving %v:\n%s", name, buf)
			}
		}()

		log.Infof(">>>>> %s %s - %s", r.Method, r.RequestURI, name)

		start := time.Now()
		inner.ServeHTTP(w, r)

		log.Infof("<<<<< %s %s - %s %s", r.Method, r.RequestURI, name, time.Since(start))

		panicked = false
	})
}

// IsSensitive checks if the given key exists in the list of bad words (sensitive info)
func IsSensitive(key string) bool {
	badWords := []string{
		"password",
		"passwd",
		"secret",
		"token",
		"passphrase",
	}
	key = strings.ToLower(key)
	for _, bad := range badWords {
		if strings.Contains(key, bad) {
			return true
		}
	}
	return false
}

// Scrubber masks the value that follows any sensitive flag (e.g. "--password x") in an argv list.
// The input slice is never modified.
func Scrubber(args []string) []string {
	scrubbed := make([]string, len(args))
	copy(scrubbed, args)
	for i := 0; i < len(scrubbed); i++ {
		if IsSensitive(scrubbed[i]) {
			if eq := strings.Index(scrubbed[i], "="); eq >= 0 {
				scrubbed[i] = scrubbed[i][:eq+1] + "**********"
			} else if i+1 < len(scrubbed) {
				scrubbed[i+1] = "**********"
				i++
			}
		}
	}
	return scrubbed
}

// sourced adds a source field to the logger that contains
// the file name and line where the logging happened.
func sourced() *log.Entry {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "<???>"
		line = 1
	} else {
		slash := strings.LastIndex(file, "/")
		file = file[slash+1:]
	}
	return log.WithField("file", fmt.Sprintf("%s:%d", file, line))
}

// Trace logs a message at level Trace on the standard logger.
func Trace(args ...interface{}) {
	sourced().Trace(args...)
}

// Info logs a message at level Info on the standard logger.
func Info(args ...interface{}) {
	sourced().Info(args...)
}

// Error logs a message at level Error on the standard logger.
func Error(args ...interface{}) {
	sourced().Error(args...)
}

// Tracef logs a message at level Trace on the standard logger.
func Tracef(format string, args ...interface{}) {
	sourced().Tracef(format, args...)
}

// Debugf logs a message at level Debug on the standard logger.
func Debugf(format string, args ...interface{}) {
	sourced().Debugf(format, args...)
}

// Infof logs a message at level Info on the standard logger.
func Infof(format string, args ...interface{}) {
	sourced().Infof(format, args...)
}

// Warnf logs a message at level Warn on the standard logger.
func Warnf(format string, args ...interface{}) {
	sourced().Warnf(format, args...)
}

// Errorf logs a message at level Error on the standard logger.
func Errorf(format string, args ...interface{}) {
	sourced().Errorf(format, args...)
}

// Errorln logs a message at level Error on the standard logger.
func Errorln(args ...interface{}) {
	sourced().Errorln(args...)
}
