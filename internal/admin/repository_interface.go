package admin

import (
	"context"
	"time"
)

type Repository interface {
	Stats(ctx context.Context) (*Stats, error)
	ActivityByDay(ctx context.Context, from, to time.Time) ([]ActivityRow, error)
	ActivityByVenue(ctx context.Context, from, to time.Time) ([]ActivityRow, error)
}
