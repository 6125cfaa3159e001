package helper

import "fmt"

// NewError wraps an error with the action that failed.
// The action should name the operation (e.g. "scan", "load entities sql").
func NewError(action string, err error) error {
	return fmt.Errorf("error in %s: %w", action, err)
}
