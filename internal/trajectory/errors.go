package trajectory

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns absent from the input table.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("trajectory: missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// InvalidArgumentError reports a caller-supplied argument outside its domain.
type InvalidArgumentError struct {
	Name   string
	Value  any
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("trajectory: invalid %s %v: %s", e.Name, e.Value, e.Reason)
}
