package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

var errUsage = errors.New("invalid usage")

// userErrors are the failures caused by what the user asked for.
var userErrors = []error{
	errUsage,
	types.ErrNotFound,
	types.ErrLockHeld,
	types.ErrTypeMismatch,
	types.ErrReadOnly,
	types.ErrAlreadyRegistered,
	types.ErrInvalidName,
	types.ErrInvalidRunNumber,
	types.ErrInvalidLattice,
	types.ErrInvalidSchema,
	types.ErrInvalidKind,
	types.ErrColumnNotFound,
	types.ErrRowOutOfRange,
	types.ErrLockBackendUnknown,
	types.ErrRedisAddrEmpty,
	types.ErrLogLevelUnknown,
	types.ErrLockTTLInvalid,
}

// exitError pins the exit code of an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUserError, err: err} }
func sysError(err error) error   { return &exitError{code: exitSysError, err: err} }

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
