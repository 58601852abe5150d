// Package task stores and serves the tasks each account owns.
//
// Every read and write is scoped by an auth.OwnerPredicate, and new tasks
// take their owner from the caller's Identity. Updating or deleting a task
// that exists but belongs to someone else fails with ErrTaskNotFound, the
// same error as for a task that does not exist.
package task
