// Package scheduler resolves due date collisions when a task is added.
//
// A new task collides with an existing task e when its due date falls in
// [e.DueDate, e.DueDate+Window). The first colliding task in list order wins
// and the new task is moved to e.DueDate+Window. The moved date is not checked
// again, so a second collision can remain after rescheduling.
package scheduler
