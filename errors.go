package esbench

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigurationError reports a missing or invalid input detected before any
// worker starts. It aborts the whole run.
type ConfigurationError struct {
	Message string
}

func (self *ConfigurationError) Error() string {
	return "configuration error: " + self.Message
}

func NewConfigurationError(format string, args ...interface{}) error {
	return errors.WithStack(&ConfigurationError{Message: fmt.Sprintf(format, args...)})
}

// UnsupportedWorkloadError reports an unrecognized workload kind.
type UnsupportedWorkloadError struct {
	Kind string
}

func (self *UnsupportedWorkloadError) Error() string {
	return fmt.Sprintf("unsupported workload: %s", self.Kind)
}

func NewUnsupportedWorkloadError(kind string) error {
	return errors.WithStack(&UnsupportedWorkloadError{Kind: kind})
}

// BackendError wraps any failure of a get, search, index or count call.
// It is fatal to the worker that hit it and to nobody else.
type BackendError struct {
	Op  string
	Err error
}

func (self *BackendError) Error() string {
	return fmt.Sprintf("backend %s failed: %s", self.Op, self.Err)
}

func (self *BackendError) Unwrap() error {
	return self.Err
}

func NewBackendError(op string, err error) error {
	return errors.WithStack(&BackendError{Op: op, Err: err})
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsUnsupportedWorkloadError(err error) bool {
	var target *UnsupportedWorkloadError
	return errors.As(err, &target)
}

func IsBackendError(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}

// IsUsageError reports whether err should terminate the process with the
// usage message and exit status 2.
func IsUsageError(err error) bool {
	return IsConfigurationError(err) || IsUnsupportedWorkloadError(err)
}
