package app

import "time"

// Operation tracks the CLI command an App was created for. It is logged
// when the App closes.
type Operation struct {
	Name       string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
}

// NewOperation creates an operation that succeeds unless Fail is called.
func NewOperation(name, parameters string, now time.Time) *Operation {
	return &Operation{
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  now,
	}
}

// Fail marks the operation as failed when err is non-nil.
func (op *Operation) Fail(err error) {
	if err != nil {
		op.Status = "error"
	}
}

// Failed reports whether the operation ended in an error.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}
