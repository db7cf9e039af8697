package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

//Logger interface that allows abstracting away the concrete logger implementation we are using
type Logger interface {
	//Fatal causes the application to terminate with the given error message
	Fatal(args ...interface{})
	//Fatalf causes the application to terminate with the given error message
	Fatalf(format string, args ...interface{})
	//Error logs a message at ERROR level on the default logger
	Error(args ...interface{})
	//Errorf logs a message at ERROR level on the default logger
	Errorf(format string, args ...interface{})
	//Warnf logs a message at WARN level on the default logger
	Warnf(format string, args ...interface{})
	//Infof logs a message at INFO level on the default logger
	Infof(format string, args ...interface{})
	//Debugf logs a message at DEBUG level on the default logger
	Debugf(format string, args ...interface{})
	//WithField returns a Logger that adds the given key/value to every entry
	WithField(key string, value interface{}) Logger
}

//NewLogger instantiates a new logger and returns it
func NewLogger() Logger {
	log.SetFormatter(&log.JSONFormatter{})

	if level, err := log.ParseLevel(os.Getenv("FARMDASH_LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	return &logger{entry: log.NewEntry(log.StandardLogger())}
}

//NewLoggerWithOutput creates a logger that writes JSON entries to out, used by the CLI to keep
//log lines away from command output and by tests to silence logging
func NewLoggerWithOutput(out io.Writer, level string) Logger {
	impl := log.New()
	impl.SetFormatter(&log.JSONFormatter{})
	impl.SetOutput(out)

	if lvl, err := log.ParseLevel(level); err == nil {
		impl.SetLevel(lvl)
	}

	return &logger{entry: log.NewEntry(impl)}
}

type logger struct {
	entry *log.Entry
}

func (l *logger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

func (l *logger) Fatal(args ...interface{}) {
	l.entry.Fatal(args...)
}

func (l *logger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

func (l *logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{entry: l.entry.WithField(key, value)}
}
