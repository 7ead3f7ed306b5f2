package common

import "fmt"

// ValidationError reports input that violates a layout or size rule. Nothing has been written when it is returned.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Err.Error()) }
func (e *ValidationError) Unwrap() error { return e.Err }

// ResourceError reports a file or device that could not be opened, read or written.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string { return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err.Error()) }
func (e *ResourceError) Unwrap() error { return e.Err }

// ExhaustionError reports that the reserved area has no free sector left.
type ExhaustionError struct {
	Size  int
	Drawn int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("reserved area exhausted: no free sector below %d after %d draws", e.Size, e.Drawn)
}

// Validationf builds a ValidationError for op from a format string.
func Validationf(op string, format string, args ...interface{}) error {
	return &ValidationError{Op: op, Err: fmt.Errorf(format, args...)}
}
