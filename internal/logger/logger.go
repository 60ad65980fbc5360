package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorMagenta = 35

	colorBold = 1
)

func colorize(s interface{}, c int) string {
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}

var levelLabels = map[string]string{
	"trace": colorize("TRC", colorMagenta),
	"debug": colorize("DBG", colorYellow),
	"info":  colorize("INF", colorGreen),
	"warn":  colorize("WRN", colorRed),
	"error": colorize("ERR", colorRed),
	"fatal": colorize("FTL", colorRed),
	"panic": colorize("PNC", colorRed),
}

// New creates a logger from the ENV and LOG_LEVEL environment variables
func New() zerolog.Logger {
	return NewWithOptions(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"), os.Stderr)
}

// NewWithOptions creates a console logger for development environments
// ("", dev, development) and a JSON logger otherwise.
func NewWithOptions(env, level string, out io.Writer) zerolog.Logger {
	var l zerolog.Logger
	switch strings.ToLower(env) {
	case "", "dev", "development":
		l = NewDevelopment(out)
	default:
		l = NewProduction(out)
	}
	return l.Level(ParseLevel(level))
}

// NewDevelopment creates a development logger with console output and colors
func NewDevelopment(out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:         out,
		TimeFormat:  "2006-01-02 15:04:05",
		FormatLevel: formatLevel,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}

// NewProduction creates a production logger with JSON output and UNIX timestamps
func NewProduction(out io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(out).With().Timestamp().Logger()
}

// ParseLevel parses a zerolog level name, defaulting to info
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		return strings.ToUpper(fmt.Sprintf("%3.3s", fmt.Sprint(i)))
	}
	if label, found := levelLabels[ll]; found {
		return label
	}
	if len(ll) > 3 {
		ll = ll[:3]
	}
	return colorize(strings.ToUpper(ll), colorBold)
}
