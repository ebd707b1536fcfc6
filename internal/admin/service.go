package admin

import (
	"context"
	"time"

	"eventsbga/internal/identity"
	"eventsbga/internal/logger"
)

// Reconciler rewrites legacy subject-keyed rows to profile ids.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (*identity.ReconcileSummary, error)
}

type Service interface {
	Stats(ctx context.Context) (*Stats, error)
	Activity(ctx context.Context, from, to time.Time, groupBy string) ([]ActivityRow, error)
	ReconcileLegacy(ctx context.Context) (*identity.ReconcileSummary, error)
}

type service struct {
	repo       Repository
	reconciler Reconciler
}

func NewService(repo Repository, reconciler Reconciler) Service {
	return &service{
		repo:       repo,
		reconciler: reconciler,
	}
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *service) Activity(ctx context.Context, from, to time.Time, groupBy string) ([]ActivityRow, error) {
	if to.Before(from) {
		return nil, ErrInvalidRange
	}

	var (
		rows []ActivityRow
		err  error
	)
	switch groupBy {
	case GroupByDay, "":
		rows, err = s.repo.ActivityByDay(ctx, from, to)
	case GroupByVenue:
		rows, err = s.repo.ActivityByVenue(ctx, from, to)
	default:
		return nil, ErrInvalidGroupBy
	}
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []ActivityRow{}
	}
	return rows, nil
}

func (s *service) ReconcileLegacy(ctx context.Context) (*identity.ReconcileSummary, error) {
	summary, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("legacy manager refs reconciled",
		"profiles", summary.Profiles,
		"rules_moved", summary.RulesMoved,
		"blocks_moved", summary.BlocksMoved,
	)
	return summary, nil
}
