// Package geoflow runs workflow DAGs of opaque operations with content
// addressed result caching.
//
// A workflow definition is flattened by the resolver into a plan of task
// nodes. Every node invocation is fingerprinted from its operation, version
// and resolved inputs; the result cache either returns a prior output, joins
// an in-flight execution or reserves the fingerprint for a new dispatch.
// Workers are reached through the dispatcher which adds correlation,
// timeouts and fixed backoff retries on top of a message queue.
//
//	srv, _ := geoflow.New(geoflow.WithMetaBaseURL("file:///etc/geoflow/workflows"))
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	run, _ := rt.Submit(ctx, "ndvi_timeseries", map[string]interface{}{"user_input": item}, nil)
//	run, _ = rt.Wait(ctx, run.ID)
package geoflow
