// Package errors provides structured error handling for jetlite.
//
// Errors carry a numeric code, a severity, context fields and an optional
// cause. Codes are grouped by the layer that raised them:
//   - 1xxx: Configuration errors
//   - 2xxx: Connection errors
//   - 5xxx: Storage errors
//   - 6xxx: File watcher errors
//   - 7xxx: Translation errors
//   - 9xxx: Internal errors
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Code is a numeric error code for programmatic handling.
type Code int

const (
	// Configuration errors (1xxx)
	ErrCodeConfigMissing    Code = 1002
	ErrCodeConfigParse      Code = 1003
	ErrCodeConfigValidation Code = 1004

	// Connection errors (2xxx)
	ErrCodeConnectionClosed Code = 2002

	// Storage errors (5xxx)
	ErrCodeStorageConnect Code = 5001
	ErrCodeStorageQuery   Code = 5002
	ErrCodeStorageExec    Code = 5003

	// Watcher errors (6xxx)
	ErrCodeWatchSetup Code = 6001
	ErrCodeWatchRead  Code = 6002
	ErrCodeWatchWrite Code = 6003

	// Translation errors (7xxx)
	ErrCodeTranslation      Code = 7001
	ErrCodeSchemaLookup     Code = 7002
	ErrCodeInvalidParameter Code = 7003

	// Internal errors (9xxx)
	ErrCodeInternal Code = 9001
)

// String returns the error code as a string.
func (c Code) String() string {
	return fmt.Sprintf("E%04d", c)
}

// Category returns the category for this code.
func (c Code) Category() string {
	switch {
	case c >= 1000 && c < 2000:
		return "configuration"
	case c >= 2000 && c < 3000:
		return "connection"
	case c >= 5000 && c < 6000:
		return "storage"
	case c >= 6000 && c < 7000:
		return "watch"
	case c >= 7000 && c < 8000:
		return "translation"
	case c >= 9000:
		return "internal"
	default:
		return "unknown"
	}
}

// Severity indicates error severity.
type Severity int

const (
	SeverityWarning  Severity = iota // Recoverable, operation may continue
	SeverityError                    // Operation failed, but system is healthy
	SeverityCritical                 // System may be in degraded state
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Error is a structured error with code, context, and optional cause.
type Error struct {
	Code     Code
	Message  string
	Severity Severity
	Fields   map[string]interface{}
	Cause    error

	Stack  []Frame
	Time   time.Time
	OpName string // e.g. "DropColumn.Schema", "Storage.Exec"
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var buf strings.Builder

	buf.WriteString(e.Code.String())
	buf.WriteString(": ")
	buf.WriteString(e.Message)

	if e.Cause != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Cause.Error())
	}

	return buf.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Format implements fmt.Formatter; %+v prints the operation, fields and stack.
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "%s [%s] %s: %s\n",
				e.Time.Format(time.RFC3339),
				e.Severity,
				e.Code.String(),
				e.Message)

			if e.OpName != "" {
				fmt.Fprintf(f, "  Operation: %s\n", e.OpName)
			}
			for k, v := range e.Fields {
				fmt.Fprintf(f, "  %s: %v\n", k, v)
			}
			if e.Cause != nil {
				fmt.Fprintf(f, "  Caused by: %v\n", e.Cause)
			}
			for _, frame := range e.Stack {
				fmt.Fprintf(f, "    %s\n      %s:%d\n", frame.Function, frame.File, frame.Line)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(f, e.Error())
	case 'q':
		fmt.Fprintf(f, "%q", e.Error())
	}
}

// Builder helps construct errors fluently.
type Builder struct {
	code     Code
	message  string
	severity Severity
	cause    error
	fields   map[string]interface{}
	op       string
	stack    bool
}

// New starts building a new error with the given code.
func New(code Code, message string) *Builder {
	return &Builder{code: code, message: message, severity: SeverityError}
}

// Newf starts building a new error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Builder {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code Code, message string) *Builder {
	return &Builder{code: code, message: message, severity: SeverityError, cause: cause}
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code Code, format string, args ...interface{}) *Builder {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// Critical sets severity to critical.
func (b *Builder) Critical() *Builder {
	b.severity = SeverityCritical
	return b
}

// WithField adds a context field.
func (b *Builder) WithField(key string, value interface{}) *Builder {
	if b.fields == nil {
		b.fields = make(map[string]interface{})
	}
	b.fields[key] = value
	return b
}

// WithOp sets the operation name.
func (b *Builder) WithOp(op string) *Builder {
	b.op = op
	return b
}

// WithStack captures a stack trace.
func (b *Builder) WithStack() *Builder {
	b.stack = true
	return b
}

// Build creates the Error.
func (b *Builder) Build() *Error {
	e := &Error{
		Code:     b.code,
		Message:  b.message,
		Severity: b.severity,
		Cause:    b.cause,
		Fields:   b.fields,
		OpName:   b.op,
		Time:     time.Now(),
	}

	if b.stack {
		e.Stack = captureStack(2)
	}

	return e
}

// Err is a shorthand for Build() that returns error interface.
func (b *Builder) Err() error {
	return b.Build()
}

func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)

	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		if !more {
			break
		}
		if strings.Contains(frame.Function, "runtime.") {
			continue
		}
		frames = append(frames, Frame{Function: frame.Function, File: frame.File, Line: frame.Line})
		if len(frames) >= 10 {
			break
		}
	}

	return frames
}

// InvalidInput creates an invalid input error.
func InvalidInput(field, reason string) *Builder {
	return Newf(ErrCodeInvalidParameter, "invalid %s: %s", field, reason).
		WithField("field", field).
		WithField("reason", reason)
}

// InvalidConfig creates a configuration validation error.
func InvalidConfig(key, reason string) *Builder {
	return Newf(ErrCodeConfigValidation, "invalid config %s: %s", key, reason).
		WithField("key", key)
}

// Internal creates an internal error (for unexpected conditions).
func Internal(msg string) *Builder {
	return New(ErrCodeInternal, msg).Critical().WithStack()
}

// GetCode extracts the error code from an error, or returns ErrCodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// GetFields extracts context fields from an error.
func GetFields(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
