package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// defaultTimeFormat applies when logging.time_format is unset
const defaultTimeFormat = "15:04:05.000"

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger, lazily building a console-only
// one for code paths that run before InitLogger
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(consoleWriter(defaultTimeFormat, true))
	}
	return globalLogger
}

// InitLogger builds the arbor logger from the logging config: level,
// text or json output, and stdout/file writer selection. The file writer
// logs to logs/claimlens.log beside the executable.
func InitLogger(config *Config) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	timeFormat := config.Logging.TimeFormat
	if timeFormat == "" {
		timeFormat = defaultTimeFormat
	}
	textOutput := config.Logging.Format != "json"

	logger := arbor.NewLogger()

	execPath, err := os.Executable()
	if err != nil {
		fmt.Printf("Warning: Failed to get executable path: %v\n", err)
		return logger.WithConsoleWriter(consoleWriter(timeFormat, textOutput))
	}
	logsDir := filepath.Join(filepath.Dir(execPath), "logs")

	fileAdded := false
	consoleAdded := false
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			if fileAdded {
				continue
			}
			if err := os.MkdirAll(logsDir, 0755); err != nil {
				fmt.Printf("Warning: Failed to create logs directory: %v\n", err)
				continue
			}
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         filepath.Join(logsDir, "claimlens.log"),
				TimeFormat:       timeFormat,
				MaxSize:          100 * 1024 * 1024, // 100 MB
				MaxBackups:       3,
				TextOutput:       textOutput,
				DisableTimestamp: false,
			})
			fileAdded = true

		case "stdout", "console":
			if consoleAdded {
				continue
			}
			logger = logger.WithConsoleWriter(consoleWriter(timeFormat, textOutput))
			consoleAdded = true
		}
	}

	logger = logger.WithLevelFromString(config.Logging.Level)

	globalLogger = logger
	return logger
}

func consoleWriter(timeFormat string, textOutput bool) models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       timeFormat,
		TextOutput:       textOutput,
		DisableTimestamp: false,
	}
}

// GetLogFilePath reports the active log file path, empty when file
// logging is off
func GetLogFilePath(logger arbor.ILogger) string {
	if logger != nil {
		if logFilePath := logger.GetLogFilePath(); logFilePath != "" {
			return logFilePath
		}
	}
	return ""
}
