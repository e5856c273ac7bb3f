// Package model contains the in-memory representation of workflow
// definitions: named graphs of tasks with sources, sinks, parameters and
// edges. Task and binding types live in the graph sub-package, the flattened
// resolved form in plan, cached results in output and the error taxonomy in
// types.
package model
