// Package broadcast fans one message out to a recipient roster with
// bounded concurrency.
//
// Dispatch is a synchronization barrier: it returns only once every
// recipient has a recorded outcome. Individual failures never abort the
// run and no retry happens inside a dispatch; re-issuing the broadcast
// is the caller's decision.
package broadcast
