// Package dispatcher sends execution requests to workers and turns their responses,
// timeouts and transport failures into one terminal outcome per request.
//
// Requests are correlated by "<runID>/<taskID>"; every resubmission carries a new
// attempt id. Responses arrive over an at-least-once channel, so only the first
// terminal response per correlation id is honoured. Infrastructure failures are
// retried with a fixed interval; operation failures are terminal. The outcome is
// recorded through a Completer, normally the result cache.
package dispatcher
