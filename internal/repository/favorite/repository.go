package favorite

import "context"

// Repository stores one favorites document per signed-in user.
type Repository interface {
	// Get returns the stored product ids, or an empty slice when the user has none yet.
	Get(ctx context.Context, userID string) ([]string, error)
	// Put overwrites the user's favorites document.
	Put(ctx context.Context, userID string, productIDs []string) error
}
