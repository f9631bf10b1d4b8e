// Package health provides composable probes and the HTTP handlers that
// serve them on the admin listener.
//
// Probes combine with [All] (AND) and [Any] (OR). [Pinger] adapts a store
// with a Ping method, [Timeout] bounds a slow probe.
//
// [ShutdownGate] fails readiness as soon as shutdown starts so load
// balancers stop sending traffic before in-flight requests are drained.
package health
