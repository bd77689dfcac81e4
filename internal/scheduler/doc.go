// Package scheduler runs the announcement trigger loop.
//
// The loop wakes on a fixed tick (schedule granularity is minutes, so
// cooperative polling is enough), asks the pure evaluator which schedules
// are due, broadcasts each one, and records the fire only after its
// dispatch has completed. Due schedules within one tick are processed
// sequentially, in store order.
package scheduler
