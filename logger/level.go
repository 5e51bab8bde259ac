package logger

import (
	"fmt"
	"strings"
)

type Level int

const (
	DEBUG Level = iota
	NOTICE
	INFO
	ERROR
	WARN
	FATAL
)

var levelNames = []string{
	"DEBUG",
	"NOTICE",
	"INFO",
	"ERROR",
	"WARN",
	"FATAL",
}

// String returns the string representation of a logging level.
func (p Level) String() string {
	return levelNames[p]
}

// LevelFromString converts a level name into a Level.
func LevelFromString(name string) (Level, error) {
	for i, levelName := range levelNames {
		if strings.EqualFold(name, levelName) {
			return Level(i), nil
		}
	}
	return DEBUG, fmt.Errorf("unknown log level %q", name)
}
