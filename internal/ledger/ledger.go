// Package ledger remembers which conversations have already been imported so
// that an interrupted run can be restarted without duplicating pages.
package ledger

import "context"

// DefaultFile is the ledger file used when no database is configured.
const DefaultFile = "processed_ids.log"

// Ledger is the set of imported conversation ids.
type Ledger interface {
	// Load returns every recorded id. It is called once per run.
	Load(ctx context.Context) (map[string]bool, error)
	// Record adds id. Recording an id twice is not an error.
	Record(ctx context.Context, id string) error
	Close() error
}

// Open returns a Postgres ledger when databaseURL is set and a file ledger
// at path otherwise.
func Open(ctx context.Context, databaseURL, path string) (Ledger, error) {
	if databaseURL != "" {
		return NewPostgres(ctx, databaseURL)
	}
	if path == "" {
		path = DefaultFile
	}
	return NewFile(path), nil
}
