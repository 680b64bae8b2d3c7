// Package logging configures the shared logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/shariqriazz/ocaauth/internal/config"
	"github.com/shariqriazz/ocaauth/internal/util"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "ocaauth.log"

var (
	setupOnce  sync.Once
	outputMu   sync.Mutex
	fileWriter *lumberjack.Logger
)

// SetupBaseLogger installs the text formatter used across the tool.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(frame *runtime.Frame) (string, string) {
				return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
			},
		})
	})
}

// SetLogLevel applies the debug flag from cfg.
func SetLogLevel(cfg *config.Config) {
	level := log.InfoLevel
	if cfg != nil && cfg.Debug {
		level = log.DebugLevel
	}
	if log.GetLevel() != level {
		log.SetLevel(level)
		log.Infof("log level changed to %s", level)
	}
}

// ConfigureLogOutput switches between stdout and a rotating log file.
func ConfigureLogOutput(cfg *config.Config) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if cfg == nil || !cfg.LoggingToFile {
		closeFileWriter()
		log.SetOutput(os.Stdout)
		return nil
	}

	dir := strings.TrimSpace(cfg.LogDir)
	if dir == "" {
		dir = filepath.Join(cfg.AuthDir, "logs")
	}
	resolved, errResolve := util.ResolveAuthDir(dir)
	if errResolve != nil {
		return fmt.Errorf("logging: resolve log dir: %w", errResolve)
	}
	if errMkdir := os.MkdirAll(resolved, 0o755); errMkdir != nil {
		return fmt.Errorf("logging: create log dir: %w", errMkdir)
	}
	target := filepath.Join(resolved, defaultLogFile)
	if fileWriter != nil && fileWriter.Filename == target {
		return nil
	}
	closeFileWriter()
	fileWriter = &lumberjack.Logger{
		Filename:   target,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
	log.SetOutput(io.Writer(fileWriter))
	return nil
}

func closeFileWriter() {
	if fileWriter == nil {
		return
	}
	if errClose := fileWriter.Close(); errClose != nil {
		fmt.Fprintf(os.Stderr, "logging: close log file: %v\n", errClose)
	}
	fileWriter = nil
}
