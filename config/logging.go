package config

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogWriter is the writer used for application and database logs.
var LogWriter io.Writer = os.Stdout

// LogFilePath returns the path to the pipeline log file inside dir.
func LogFilePath(dir string) string {
	if dir == "" {
		dir = "logs"
	}
	return filepath.Join(dir, "etl.log")
}

// InitLogging opens the log file, points LogWriter and the standard logger at
// stdout plus that file, and builds the zap logger handed to every service.
// The returned file may be nil when it could not be opened.
func InitLogging(settings *Settings, service string) (*zap.Logger, *os.File) {
	path := LogFilePath(settings.LogDir)
	var logFile *os.File
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create logs directory: %v", err)
	} else if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
		log.Printf("Warning: Failed to open log file: %v", err)
	} else {
		logFile = f
	}

	if logFile != nil {
		LogWriter = io.MultiWriter(os.Stdout, logFile)
	} else {
		LogWriter = os.Stdout
	}
	log.SetOutput(LogWriter)

	return NewLogger(LogWriter, settings.IsProduction()).With(zap.String("service", service)), logFile
}

// NewLogger builds a zap logger writing to w: JSON in production, console otherwise.
func NewLogger(w io.Writer, production bool) *zap.Logger {
	var encoder zapcore.Encoder
	level := zapcore.DebugLevel
	if production {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
		level = zapcore.InfoLevel
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core, zap.AddCaller())
}
