package profile

import (
	"fmt"
	"strings"
)

// LogLevel controls how much of a resolution is reported to the user.
// It never changes the outcome of a resolution.
type LogLevel int

const (
	// LogOff reports nothing.
	LogOff LogLevel = iota
	// LogPretty reports one labelled line per resolved variable, link and dump.
	LogPretty
	// LogVerbose additionally reports every variable harvested from dump files.
	LogVerbose
)

// String returns the flag spelling of the level.
func (l LogLevel) String() string {
	switch l {
	case LogOff:
		return "off"
	case LogPretty:
		return "pretty"
	case LogVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// ParseLogLevel parses off, pretty or verbose.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none", "quiet":
		return LogOff, nil
	case "", "pretty":
		return LogPretty, nil
	case "verbose":
		return LogVerbose, nil
	default:
		return LogPretty, fmt.Errorf("unknown log level %q (want off, pretty or verbose)", s)
	}
}

// Set implements pflag.Value.
func (l *LogLevel) Set(s string) error {
	parsed, err := ParseLogLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Type implements pflag.Value.
func (l *LogLevel) Type() string {
	return "level"
}
