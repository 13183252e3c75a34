package scanner

import (
	"context"
	"log/slog"

	"github.com/greentrades/arbot/internal/domain"
)

// Strategy is the seam additional scan models plug into. The cross-venue
// spot scanner is the only registered strategy today.
type Strategy interface {
	Scan(ctx context.Context) []domain.Opportunity
}

var (
	_ Strategy = (*Scanner)(nil)
	_ Strategy = (*Triangular)(nil)
)

// Triangular is a placeholder for single-venue triangular arbitrage
// (quote -> base -> bridge -> quote). It never emits opportunities.
type Triangular struct {
	logger *slog.Logger
}

// NewTriangular returns the stub strategy.
func NewTriangular(logger *slog.Logger) *Triangular {
	return &Triangular{logger: logger.With(slog.String("component", "triangular"))}
}

// Scan always returns nil; triangular scanning is not implemented.
func (t *Triangular) Scan(context.Context) []domain.Opportunity {
	t.logger.Warn("triangular arbitrage is not implemented")
	return nil
}
