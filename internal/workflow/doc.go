// Package workflow runs the ticket intake pipeline.
//
// An activation is one execution of the pipeline for a triggering event. It is
// split into named steps; each step's result is written to a StepLog keyed by
// activation id and step name, so a re-entered activation (same event id)
// skips completed steps and re-runs only the one that failed. Transient step
// errors are retried a bounded number of times with backoff, and a
// NonRetriableError ends the activation immediately.
package workflow
