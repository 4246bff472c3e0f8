// Package api handles incoming HTTP requests, routing, request validation,
// and response formatting. It exposes only the external surface of the task
// queue: submit a task, read its state. All task transitions happen in the
// worker, never through this package.
package api
