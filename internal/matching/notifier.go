package matching

import (
	"context"

	"github.com/skillswap/swap-app/internal/models"
)

// Notifier is told about newly created matches so both participants can be
// pushed an update. Implementations must be safe for concurrent use.
type Notifier interface {
	MatchCreated(ctx context.Context, m *models.MatchRecord) error
}

type nopNotifier struct{}

func (nopNotifier) MatchCreated(context.Context, *models.MatchRecord) error { return nil }
