// Package processor hosts the workers that execute instances.  Every worker
// consumes instance references from the queue fed by the registry and runs
// the workflow steps of the referenced instance through the durable runner.
package processor
