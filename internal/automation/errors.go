package automation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClass buckets script failures by how callers should react.
type ErrClass string

const (
	ClassGeneric          ErrClass = "generic"
	ClassTransient        ErrClass = "transient"          // connection dropped; worth retrying
	ClassPermissionDenied ErrClass = "permission_denied"  // automation permission missing
	ClassOutputTooLarge   ErrClass = "output_too_large"   // script result exceeded the cap
	ClassAppNotRunning    ErrClass = "app_not_running"
)

// ScriptError is a classified osascript failure.
type ScriptError struct {
	Class  ErrClass
	App    string
	Detail string
}

func (e *ScriptError) Error() string {
	switch e.Class {
	case ClassPermissionDenied:
		return fmt.Sprintf("not authorized to automate %s - grant access in System Settings > Privacy & Security > Automation (%s)", e.App, e.Detail)
	case ClassOutputTooLarge:
		return fmt.Sprintf("%s returned more output than allowed - narrow the request", e.App)
	case ClassAppNotRunning:
		return fmt.Sprintf("%s is not running (%s)", e.App, e.Detail)
	case ClassTransient:
		return fmt.Sprintf("connection to %s failed (%s)", e.App, e.Detail)
	default:
		return fmt.Sprintf("script against %s failed: %s", e.App, e.Detail)
	}
}

// classify maps osascript stderr to the error taxonomy. Apple event
// error numbers are stable across macOS versions; the text around them
// is not, so both are matched.
func classify(app, stderr string) *ScriptError {
	detail := strings.TrimSpace(stderr)
	lower := strings.ToLower(detail)

	class := ClassGeneric
	switch {
	case strings.Contains(detail, "-1712"), // event timed out
		strings.Contains(detail, "-609"), // connection is invalid
		strings.Contains(lower, "connection is invalid"),
		strings.Contains(lower, "timed out"):
		class = ClassTransient
	case strings.Contains(detail, "-1743"),
		strings.Contains(lower, "not authorized"):
		class = ClassPermissionDenied
	case strings.Contains(detail, "-600"),
		strings.Contains(lower, "isn't running"):
		class = ClassAppNotRunning
	}
	return &ScriptError{Class: class, App: app, Detail: detail}
}

// IsTransient reports whether err is a retryable connection failure.
func IsTransient(err error) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Class == ClassTransient
}
