package record

import "context"

// Store is the durable last-value store for all three record kinds.
//
// Fetch methods return records in unspecified order. Records whose stored
// form cannot be decoded are left out of the result and reported one error
// each in the second return value; the third return value is reserved for
// failures that abort the whole read.
//
// Upserts and deletes commit before returning. Implementations must be safe
// for concurrent use; concurrent upserts to the same key race and the last
// commit wins.
type Store interface {
	UpsertMessage(ctx context.Context, rec MessageRecord) error
	FetchMessages(ctx context.Context, room string) ([]MessageRecord, []error, error)

	UpsertVariable(ctx context.Context, rec VariableRecord) error
	FetchVariables(ctx context.Context, room string) ([]VariableRecord, []error, error)

	UpsertProjectVariable(ctx context.Context, v ProjectVariable) error
	FetchProjectVariables(ctx context.Context, projectID string) ([]ProjectVariable, []error, error)

	// RenameProjectVariable moves the value stored under oldName to newName.
	// Returns a NOT_FOUND error, leaving the store untouched, when oldName
	// does not exist.
	RenameProjectVariable(ctx context.Context, projectID, oldName, newName string) error

	// DeleteProjectVariable removes the variable if present. Deleting an
	// absent variable is not an error.
	DeleteProjectVariable(ctx context.Context, projectID, name string) error

	Ping(ctx context.Context) error
	Close() error
}
