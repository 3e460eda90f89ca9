// Package juststarterr defines the core error kinds shared by every
// juststart package. Every core-originated error carries a severity
// level alongside its message so that both the daemon's logging and the
// RPC client's exit behavior can key off it without string matching.
package juststarterr

import "fmt"

// Level steers logging verbosity and client exit behavior.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Kind identifies which subsystem raised the error.
type Kind string

const (
	KindRunnerConfig   Kind = "RunnerConfigError"
	KindRunner         Kind = "RunnerError"
	KindRunnerManager  Kind = "RunnerManagerError"
	KindManagerConfig  Kind = "ManagerConfigError"
	KindEnv            Kind = "EnvError"
)

// Error is the common shape for every error juststart's core packages
// return. It wraps an optional cause so %w unwrapping still works.
type Error struct {
	Kind    Kind
	Level   Level
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no wrapped cause.
func New(kind Kind, level Level, message string) *Error {
	return &Error{Kind: kind, Level: level, Message: message}
}

// Wrap builds an Error around an existing cause.
func Wrap(kind Kind, level Level, message string, cause error) *Error {
	return &Error{Kind: kind, Level: level, Message: message, Cause: cause}
}

// RunnerConfigErrorf builds a KindRunnerConfig error at warning level —
// malformed args/config/env line, or an unknown config key.
func RunnerConfigErrorf(format string, a ...any) *Error {
	return New(KindRunnerConfig, LevelWarning, fmt.Sprintf(format, a...))
}

// RunnerErrorf builds a KindRunner error at error level — a Service
// lifecycle precondition violation or a not-found lookup.
func RunnerErrorf(format string, a ...any) *Error {
	return New(KindRunner, LevelError, fmt.Sprintf(format, a...))
}

// RunnerManagerErrorf builds a KindRunnerManager error at error level.
func RunnerManagerErrorf(format string, a ...any) *Error {
	return New(KindRunnerManager, LevelError, fmt.Sprintf(format, a...))
}

// ManagerConfigErrorf builds a KindManagerConfig error. Roster
// precondition violations that are expected/frequent (re-enabling an
// already-enabled entry) are reported at info level per spec.md §8.
func ManagerConfigErrorf(level Level, format string, a ...any) *Error {
	return New(KindManagerConfig, level, fmt.Sprintf(format, a...))
}

// EnvErrorf builds a KindEnv error — failure invoking the env-dump
// subprogram. A missing env file is never an error (see envbuild).
func EnvErrorf(format string, a ...any) *Error {
	return New(KindEnv, LevelError, fmt.Sprintf(format, a...))
}

// As reports whether err is (or wraps) a *Error, returning it.
func As(err error) (*Error, bool) {
	var e *Error
	if err == nil {
		return nil, false
	}
	if ce, ok := err.(*Error); ok {
		return ce, true
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return As(u.Unwrap())
	}
	return e, false
}
