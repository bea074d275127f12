package analyzer

import (
	"fmt"
	"strings"
)

// UnsupportedFileTypeError is returned when a file's extension is not in the
// recognized set. Fatal; never retried.
type UnsupportedFileTypeError struct {
	File      string
	Ext       string
	Supported []string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s: supported types are %s",
		e.Ext, e.File, strings.Join(e.Supported, ", "))
}

// ParseFailedError is returned when a source file cannot be structurally
// understood. Fatal for that file only; a batch of other files proceeds.
type ParseFailedError struct {
	File   string
	Reason string
	Err    error
}

func (e *ParseFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse failed for %s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse failed for %s: %s", e.File, e.Reason)
}

func (e *ParseFailedError) Unwrap() error { return e.Err }
