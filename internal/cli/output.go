package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // scenario failed, or the scenario file is invalid
	ExitCommandError = 2 // bad arguments, unreadable files, journal errors
)

// Error codes carried in JSON error responses.
const (
	ErrCodeNotFound        = "E005" // journal or run not found
	ErrCodeInvalidScenario = "E101" // scenario file failed to load or validate
	ErrCodeInvalidRepro    = "E102" // repro string missing or malformed
	ErrCodeScenarioFailed  = "E201" // reproducer failure or unmet expectation
	ErrCodeDatabase        = "E301" // journal could not be opened, read or written
)

// ExitError ends a command with a specific process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError creates an ExitError around err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure for any
// other error.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope written by every command with --format json.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter renders command results as text or as a JSON Response.
// Diagnostics go to a separate writer so they never corrupt JSON on stdout.
type OutputFormatter struct {
	json    bool
	out     io.Writer
	diag    io.Writer
	verbose bool
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		json:    opts.Format == "json",
		out:     cmd.OutOrStdout(),
		diag:    cmd.ErrOrStderr(),
		verbose: opts.Verbose,
	}
}

// Emit writes data as an "ok" Response, or calls writeText in text mode.
func (f *OutputFormatter) Emit(data any, writeText func(io.Writer)) error {
	if f.json {
		return json.NewEncoder(f.out).Encode(Response{Status: "ok", Data: data})
	}
	writeText(f.out)
	return nil
}

// Fail reports err under errCode and returns the ExitError for RunE.
// details are included in JSON, and in text only with --verbose.
func (f *OutputFormatter) Fail(exitCode int, errCode, message string, err error, details any) *ExitError {
	text := message
	if err != nil {
		text = err.Error()
	}

	if f.json {
		_ = json.NewEncoder(f.out).Encode(Response{
			Status: "error",
			Error:  &ErrorBody{Code: errCode, Message: text, Details: details},
		})
	} else {
		fmt.Fprintf(f.out, "Error [%s]: %s\n", errCode, text)
		if f.verbose && details != nil {
			fmt.Fprintf(f.out, "Details: %v\n", details)
		}
	}

	return &ExitError{Code: exitCode, Message: message, Err: err}
}

// Debugf writes a diagnostic line when --verbose is set.
func (f *OutputFormatter) Debugf(format string, args ...any) {
	if f.verbose {
		fmt.Fprintf(f.diag, format+"\n", args...)
	}
}
