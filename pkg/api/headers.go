package api

const (
	// HeaderRunID is header for RunID
	HeaderRunID = "x-run-id"
	// HeaderTask is header for the task name
	HeaderTask = "x-task"
	// HeaderType is header for the event type
	HeaderType = "x-type"
	// HeaderCorrelationID is header for CorrelationID
	HeaderCorrelationID = "x-correlation-id"
)
