package node

// Result is the explicit outcome of a transformation step: either a value
// or a failure with a reason. Failures flow through the graph as ordinary
// values so a downstream assembler can close its run with a well-formed
// failure document instead of unwinding the call stack.
type Result struct {
	value  any
	reason string
	failed bool
}

// OK wraps a successful transformation value.
func OK(v any) Result {
	return Result{value: v}
}

// Failure wraps a failed transformation with a human-readable reason.
func Failure(reason string) Result {
	return Result{reason: reason, failed: true}
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool { return r.failed }

// Value returns the wrapped value. Only meaningful when Failed is false.
func (r Result) Value() any { return r.value }

// Reason returns the failure description. Empty when Failed is false.
func (r Result) Reason() string { return r.reason }
