package app

// SyncOperation tracks a CLI run that may mutate the store. Operations are
// created in memory with an empty ID. Only store-mutating commands persist
// them (giving them a sync-run row and a generated ID).
type SyncOperation struct {
	ID         string
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewSyncOperation creates a new in-memory sync operation.
func NewSyncOperation(operation, parameters string) *SyncOperation {
	return &SyncOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the store.
func (op *SyncOperation) Persisted() bool {
	return op.ID != ""
}
