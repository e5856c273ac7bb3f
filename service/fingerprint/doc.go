// Package fingerprint derives the stable identity of an operation invocation
// from its operation name, version and fully resolved inputs. Literal inputs
// are encoded canonically, upstream outputs contribute the fingerprint of the
// producing invocation. Task names, run identifiers and wall-clock time never
// take part in the digest.
//
// Inputs carrying non-reproducible data (current time, random seeds) must be
// excluded by the caller, typically by declaring them volatile on the task.
package fingerprint
