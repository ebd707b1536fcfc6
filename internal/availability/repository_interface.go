package availability

import (
	"context"
	"time"
)

// Repository persists availability rules and blocked slots. Read and delete
// methods take every known alias of a manager, canonical first; inserts take
// the canonical reference only.
type Repository interface {
	GetDateRule(ctx context.Context, refs []string, date time.Time) (*Rule, error)
	ListRecurringRules(ctx context.Context, refs []string) ([]Rule, error)
	ProvisionDefaults(ctx context.Context, managerRef string, hours []int) ([]Rule, error)
	ReplaceRecurring(ctx context.Context, managerRef string, refs []string, week map[int][]int) error
	ReplaceDate(ctx context.Context, managerRef string, refs []string, date time.Time, hours []int) error
	ClearDate(ctx context.Context, refs []string, date time.Time) (int64, error)

	FindBlock(ctx context.Context, refs []string, hour int, scopeKey string) (*BlockedSlot, error)
	InsertBlock(ctx context.Context, slot *BlockedSlot) (*BlockedSlot, error)
	ClaimBlock(ctx context.Context, id int) error
	DeleteBlocks(ctx context.Context, refs []string, hour int, scopeKey string) (int64, error)
	DeleteBlockByID(ctx context.Context, refs []string, id int) (int64, error)
	ListBlocks(ctx context.Context, refs []string) ([]BlockedSlot, error)

	ResetAll(ctx context.Context, managerRef string, refs []string, hours []int) (*ResetResult, error)
}
