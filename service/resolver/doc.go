// Package resolver flattens a workflow definition, including nested sub-workflows,
// into a validated plan.Plan with a deterministic topological order.
//
// Nested task names are namespaced with the containing task name ("outer/inner").
// Parameter references are resolved against the enclosing scope; references to
// top-level parameters stay symbolic and are bound when a run starts.
package resolver
