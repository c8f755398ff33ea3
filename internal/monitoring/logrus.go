package monitoring

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string
	// File enables a rotating log file in addition to stderr.
	File string
	// MaxSizeMB, MaxAgeDays and MaxBackups tune rotation of File.
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	// NoColors disables ANSI colours, e.g. when stderr is not a terminal.
	NoColors bool
	// Output overrides stderr; used by tests.
	Output io.Writer
}

// NewLogger builds the logrus logger used by the commands.
func NewLogger(opts LoggerOptions) (*logrus.Logger, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	logger.SetLevel(level)
	logger.SetReportCaller(true)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "2006-01-02 15:04:05.000",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, s[len(s)-1])
		},
	})

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
			MaxBackups: orDefault(opts.MaxBackups, 3),
		})
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger, nil
}

// UseLogrus routes Logf to logger at info level.
func UseLogrus(logger *logrus.Logger) {
	SetLogger(logger.Infof)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
