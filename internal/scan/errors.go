package scan

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSetup marks failures before any pipeline work started: missing
	// source, unusable database, undetectable drive.
	ErrSetup = errors.New("setup error")
	// ErrResumeValidation marks a checkpoint that cannot safely continue
	// under the current drive or configuration.
	ErrResumeValidation = errors.New("resume validation error")
	// ErrLocked marks a second scan attempt while one is already running.
	ErrLocked = errors.New("scan already in progress")
)

// Wrap tags an error with one of the sentinel markers above plus stage and
// operation context, so callers can classify with errors.Is while logs keep
// the full chain.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrSetup
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "scan failure"
	}
	return strings.Join(parts, ": ")
}
