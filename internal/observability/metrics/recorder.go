// Package metrics provides custom Prometheus metrics for KamiAI.
package metrics

// Recorder defines a minimal interface for recording metrics.
// Components depend on it instead of a concrete metrics struct so tests can
// pass nil or a fake.
type Recorder interface {
	// RecordOperation records an operation with its status ("success" or "error").
	RecordOperation(operation, status string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError records an error occurrence with its type.
	RecordError(operation, errorType string)
}

// statusOf maps an error to a status label value.
func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
