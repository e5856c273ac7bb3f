// Package worker is the in-process Worker Executor. It consumes execution requests,
// runs registered operations on a bounded pool, and answers with ack, success or
// failure responses correlated by request id.
package worker
