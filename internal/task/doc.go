// Package task defines the Task record shared by the store, the scheduler,
// the timer engine and the summary projections.
//
// Tasks are identified by a stable opaque ID assigned at creation. Positions
// in a list are never used as identity.
package task
