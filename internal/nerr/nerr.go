// Package nerr defines the sentinel error kinds shared by the naming
// server's core packages, following the same errors.New-sentinel plus
// per-package errorf wrapping convention used by internal/config/error.go.
package nerr

import "errors"

var (
	// ErrInvalidPath is returned when a path string or component fails to parse.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidArgument is returned for nil/empty arguments that are not path-shaped.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPathNotFound is returned when an operation references a path absent from the tree.
	ErrPathNotFound = errors.New("path not found")

	// ErrInvalidState is returned when an operation cannot proceed given the
	// server's current state, e.g. create_file with no registered storage servers.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyRegistered is returned when a storage server registers a stub already known.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrInterrupted is returned when a blocked lock acquisition is cancelled.
	ErrInterrupted = errors.New("interrupted")

	// ErrRPC wraps a transport-level failure talking to a storage server.
	ErrRPC = errors.New("rpc error")
)
