// Package task runs background work off the caller's goroutine. A TaskQueue
// buffers tasks and a WorkerPool executes them; with a single worker, tasks
// run strictly in the order they were enqueued.
package task
