// Package batch tracks long-running administrative batch operations and
// runs them across the credential pool with bounded concurrency.
//
// A batch operation (for example clearing upstream assets for every
// credential) is represented by a Task: callers create one through the
// Registry, poll its snapshot while workers report per-item progress, and
// may cooperatively cancel it. Finished tasks stay queryable for a
// retention window and are then expired.
package batch
