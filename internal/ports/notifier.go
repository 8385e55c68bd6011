package ports

import (
	"context"

	"github.com/alejandrodnm/oraclesync/internal/domain"
)

// Progress is the (loaded, total, message) triple of a reconciliation pass.
// A zero Total with Active=false means idle.
type Progress struct {
	Loaded  int
	Total   int
	Message string
	Active  bool
}

// Notifier presents the reconciled markets to the user.
type Notifier interface {
	Notify(ctx context.Context, rows []domain.CacheRow) error
}
