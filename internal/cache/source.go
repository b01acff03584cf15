package cache

// RowSource yields records of the fixed row schema. The file-backed Dir and
// the in-memory Memory collection implement it interchangeably, so consumers
// never care where rows come from.
type RowSource interface {
	Records() ([]Record, error)
}

// Memory is an in-memory RowSource.
type Memory []Record

// Records returns the collection as-is.
func (m Memory) Records() ([]Record, error) {
	return m, nil
}
