package esbench

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/hhkbp2/go-strftime"
	"github.com/sirupsen/logrus"
)

type LogLevelType uint8

const (
	LevelVerbose LogLevelType = 50
	LevelDebug   LogLevelType = 40
	LevelInfo    LogLevelType = 30
	LevelWarn    LogLevelType = 20
	LevelError   LogLevelType = 10
	LevelQuiet   LogLevelType = 0
)

const (
	LogTimeFormat = "%Y-%m-%d %H:%M:%S"
)

var (
	nameToLevels = map[string]LogLevelType{
		"verbose": LevelVerbose,
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"error":   LevelError,
		"quiet":   LevelQuiet,
	}
	levelToLogrus = map[LogLevelType]logrus.Level{
		LevelVerbose: logrus.TraceLevel,
		LevelDebug:   logrus.DebugLevel,
		LevelInfo:    logrus.InfoLevel,
		LevelWarn:    logrus.WarnLevel,
		LevelError:   logrus.ErrorLevel,
		LevelQuiet:   logrus.PanicLevel,
	}
)

var (
	defaultLogOutput io.Writer = os.Stderr
	logger                     = newLogger(defaultLogOutput)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&lineFormatter{timeFormat: LogTimeFormat})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// lineFormatter renders `<time> <LEVEL> <message> k=v ...`.
type lineFormatter struct {
	timeFormat string
}

func (self *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(strftime.Format(self.timeFormat, entry.Time))
	buf.WriteByte(' ')
	buf.WriteString(strings.ToUpper(entry.Level.String()))
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Data[k])
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func SetLogLevel(name string) error {
	level, ok := nameToLevels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return NewConfigurationError("unknown log level: %s", name)
	}
	logger.SetLevel(levelToLogrus[level])
	return nil
}

func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

func Logf(level LogLevelType, format string, args ...interface{}) {
	if level == LevelQuiet {
		return
	}
	logger.Logf(levelToLogrus[level], format, args...)
}

func Errorf(format string, args ...interface{}) {
	Logf(LevelError, format, args...)
}

func Warnf(format string, args ...interface{}) {
	Logf(LevelWarn, format, args...)
}

func Infof(format string, args ...interface{}) {
	Logf(LevelInfo, format, args...)
}

func Debugf(format string, args ...interface{}) {
	Logf(LevelDebug, format, args...)
}

func Verbosef(format string, args ...interface{}) {
	Logf(LevelVerbose, format, args...)
}

func PromptPrintf(format string, args ...interface{}) {
	fmt.Fprintf(OutputDest, format, args...)
}

func Printf(format string, args ...interface{}) {
	fmt.Fprintf(OutputDest, format, args...)
	fmt.Fprintln(OutputDest, "")
}

func EPrintf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintln(os.Stderr, "")
}
