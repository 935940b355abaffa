package analysis

import "fmt"

// AnalysisError represents a signal analysis failure. Callers downgrade the
// affected field instead of propagating these.
type AnalysisError struct {
	Message  string
	Original error
}

func (e *AnalysisError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("Analysis error: %s: %v", e.Message, e.Original)
	}
	return fmt.Sprintf("Analysis error: %s", e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Original
}
