// Package model defines the domain types and value objects for the
// portwatch CLI and its port probing engine.
//
// This package contains pure data structures with no external dependencies.
// It holds the request types (FreePortRequest, WaitRequest), the probing
// Strategy enum, and the error taxonomy shared by every layer:
// UnexpectedBindError, InsufficientPortsError, TimeoutError (matched by the
// ErrTimeout sentinel) and InvalidPortError.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
