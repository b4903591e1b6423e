package db

import "errors"

// Sentinel errors for store operations.
var (
	ErrDatasetNotFound = errors.New("db: dataset not found")
	ErrDatasetExists   = errors.New("db: dataset already exists")
	ErrIndexNotFound   = errors.New("db: index not found")
	ErrIndexExists     = errors.New("db: index already exists")
)

// Op constants name the backend command or statement for error context.
const (
	OpCreateIndex = "CREATE INDEX"
	OpDropIndex   = "DROP INDEX"
	OpPutDataset  = "PUT DATASET"
	OpGetDataset  = "GET DATASET"
	OpArchive     = "ARCHIVE"
	OpPutEntries  = "PUT ENTRIES"
	OpSearch      = "SEARCH"
	OpCount       = "COUNT"
	OpPing        = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
