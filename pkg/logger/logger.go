// Package logger provides component-tagged structured logging for groupwarden.
//
// Every log line carries a "component" field ("telegram", "llm", "pipeline", ...)
// so operator-side filtering works without grep gymnastics. Classifier and
// permission failures are reported here, never into the chat.
package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Level is the log verbosity level.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	switch level {
	case DEBUG:
		log.SetLevel(logrus.DebugLevel)
	case INFO:
		log.SetLevel(logrus.InfoLevel)
	case WARN:
		log.SetLevel(logrus.WarnLevel)
	case ERROR:
		log.SetLevel(logrus.ErrorLevel)
	}
}

// SetLevelName sets the level from a config string ("debug", "info", "warn",
// "error"). Unknown names leave the level unchanged.
func SetLevelName(name string) {
	switch name {
	case "debug", "DEBUG":
		SetLevel(DEBUG)
	case "info", "INFO":
		SetLevel(INFO)
	case "warn", "WARN", "warning", "WARNING":
		SetLevel(WARN)
	case "error", "ERROR":
		SetLevel(ERROR)
	}
}

// SetOutput redirects log output, e.g. to a MultiWriter over stderr and a file.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

func DebugC(component, msg string) {
	log.WithField("component", component).Debug(msg)
}

func InfoC(component, msg string) {
	log.WithField("component", component).Info(msg)
}

func WarnC(component, msg string) {
	log.WithField("component", component).Warn(msg)
}

func ErrorC(component, msg string) {
	log.WithField("component", component).Error(msg)
}

func DebugCF(component, msg string, fields map[string]any) {
	log.WithField("component", component).WithFields(logrus.Fields(fields)).Debug(msg)
}

func InfoCF(component, msg string, fields map[string]any) {
	log.WithField("component", component).WithFields(logrus.Fields(fields)).Info(msg)
}

func WarnCF(component, msg string, fields map[string]any) {
	log.WithField("component", component).WithFields(logrus.Fields(fields)).Warn(msg)
}

func ErrorCF(component, msg string, fields map[string]any) {
	log.WithField("component", component).WithFields(logrus.Fields(fields)).Error(msg)
}
