package models

import (
	"strings"
	"time"
)

// FailureKind classifies why an operation did not succeed.
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureToolNotFound    FailureKind = "ToolNotFound"
	FailureNonZeroExit     FailureKind = "NonZeroExit"
	FailureTimeout         FailureKind = "Timeout"
	FailureUnexpected      FailureKind = "Unexpected"
	FailureInvalidArgument FailureKind = "InvalidArgument"
	FailureParseError      FailureKind = "ParseError"
	FailureUnsupported     FailureKind = "UnsupportedOperation"
)

// CommandResult is the uniform outcome of one external invocation.
type CommandResult struct {
	Command     []string
	Succeeded   bool
	Stdout      string
	Stderr      string
	ExitCode    int
	FailureKind FailureKind
	Duration    time.Duration
}

// CommandLine renders the argument vector for display only.
func (r CommandResult) CommandLine() string {
	return strings.Join(r.Command, " ")
}
