package main

import "fmt"

// Exit codes for the lmscore CLI.
const (
	ExitOK          = 0   // All requests answered.
	ExitFailure     = 1   // Scoring failed.
	ExitInvalidArgs = 2   // Bad flags, config, or input.
	ExitInterrupted = 130 // Cancelled by signal.
)

// exitCodeError carries a non-zero exit code through cobra's error handling.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

// ExitCode returns the exit code for this error.
func (e *exitCodeError) ExitCode() int { return e.code }

func exitError(code int, format string, args ...any) *exitCodeError {
	return &exitCodeError{code: code, msg: fmt.Sprintf(format, args...)}
}
