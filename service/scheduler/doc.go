// Package scheduler drives runs of resolved plans.
//
// Every run is owned by a single actor goroutine that serialises its task state
// transitions. Ready tasks are fingerprinted and looked up in the result cache:
// a hit completes the task directly, a reservation dispatches it, and a wait joins
// an execution reserved by another caller. The actor resumes on cache handle
// resolution and dispatcher notifications, never by polling.
package scheduler
