/*
Package observability turns scheduler lifecycle events into Prometheus
metrics and structured log lines.

Both are exposed as domain.LifecycleHooks so they can be combined with Merge
and passed to the scheduler.
*/
package observability
