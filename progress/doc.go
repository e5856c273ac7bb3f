// Package progress keeps aggregated task counters for a workflow run. The
// scheduler moves counters between task states as transitions happen, so the
// control surface can report progress without walking every task.
package progress
