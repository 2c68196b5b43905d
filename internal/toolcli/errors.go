package toolcli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/todoroff/terraform-provider-vmdock/internal/models"
	"github.com/todoroff/terraform-provider-vmdock/internal/validate"
)

var (
	// ErrToolNotFound indicates the required binary could not be located.
	ErrToolNotFound = errors.New("tool not found")
	// ErrTimeout indicates the command exceeded its deadline and was killed.
	ErrTimeout = errors.New("command timed out")
	// ErrUnsupported indicates an operation the tools cannot perform, such as shrinking a disk.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrLaunchFailed indicates a background process could not be spawned.
	ErrLaunchFailed = errors.New("launch failed")
)

// CLIError represents a non-zero exit raised by an external tool.
type CLIError struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ParseError reports tool output that could not be interpreted.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse tool output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnexpectedError wraps failures that are neither a missing tool, a timeout nor a
// non-zero exit, e.g. an I/O error while starting the process.
type UnexpectedError struct {
	Command string
	Err     error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: unexpected error: %v", e.Command, e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// Classify maps an error returned by any vmdock operation to its failure kind.
func Classify(err error) models.FailureKind {
	if err == nil {
		return models.FailureNone
	}

	var (
		validationErr *validate.Error
		cliErr        *CLIError
		parseErr      *ParseError
	)
	switch {
	case errors.As(err, &validationErr):
		return models.FailureInvalidArgument
	case errors.Is(err, ErrToolNotFound):
		return models.FailureToolNotFound
	case errors.Is(err, ErrTimeout):
		return models.FailureTimeout
	case errors.As(err, &cliErr):
		return models.FailureNonZeroExit
	case errors.As(err, &parseErr):
		return models.FailureParseError
	case errors.Is(err, ErrUnsupported):
		return models.FailureUnsupported
	default:
		return models.FailureUnexpected
	}
}
