package graph

import "fmt"

// ConfigurationError reports an invalid topology: duplicate node IDs,
// edges referencing unknown nodes, overlapping exclusive-field ownership,
// or a dependency cycle. It is raised by Build, before any node runs.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid topology: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IterationLimitError reports that execution did not terminate within the
// configured step budget. It is fatal for the request.
type IterationLimitError struct {
	Limit int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit exceeded: more than %d node executions", e.Limit)
}
