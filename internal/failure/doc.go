// Package failure routes job failures to failure-recording backends.
//
// RetrySuppression sits in front of the real backends. When the retry
// scheduler still intends to retry the job, the failure is held back and a
// short-lived snapshot is written instead, keyed by FailureKey, so a
// dashboard can show that the job is mid-retry. Only the final failure
// reaches the wrapped backends.
package failure
