package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrAccessDenied = errors.New("access denied")
	ErrNoResumeText = errors.New("no resume text available")
	ErrEmptyPrompt  = errors.New("edit prompt is empty")
)

// InvalidStateError is returned when a trigger's status precondition does
// not hold. Nothing is written when it is returned.
type InvalidStateError struct {
	Current  string
	Expected []string
}

func (e *InvalidStateError) Error() string {
	current := e.Current
	if current == "" {
		current = "<none>"
	}
	return fmt.Sprintf("invalid document status %q, expected %s", current, strings.Join(e.Expected, " or "))
}
