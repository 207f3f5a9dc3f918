package run

import "context"

// Repository is the persistence gateway for run records. Records are
// append-only: there is no update or delete.
type Repository interface {
	// Initialize creates the run collection if it does not exist. It is
	// idempotent and must succeed before Create or List are used.
	Initialize(ctx context.Context) error

	// Create stores a new record stamped with the current UTC time and
	// returns its assigned id.
	Create(ctx context.Context, distanceKilometers float64, duration string) (int64, error)

	// List returns every record ordered by id.
	List(ctx context.Context) ([]RunRecord, error)

	// Close releases the underlying store.
	Close() error
}
