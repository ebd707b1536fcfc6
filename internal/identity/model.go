package identity

import (
	"errors"
	"fmt"
	"time"

	"eventsbga/internal/availability"
)

var (
	ErrProfileNotFound = fmt.Errorf("manager profile %w", availability.ErrManagerNotFound)
	ErrProfileExists   = errors.New("manager profile already exists")
	ErrStorageDisabled = errors.New("image storage is not configured")
)

// Profile is a venue operator. ID is the canonical manager reference;
// SubjectID is the identity provider subject it was registered under.
type Profile struct {
	ID          string    `db:"id" json:"id"`
	SubjectID   string    `db:"subject_id" json:"subjectId"`
	Email       string    `db:"email" json:"email"`
	VenueName   string    `db:"venue_name" json:"venueName"`
	Description string    `db:"description" json:"description"`
	Address     string    `db:"address" json:"address"`
	Capacity    int       `db:"capacity" json:"capacity"`
	ImageURL    string    `db:"image_url" json:"imageUrl"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// PublicProfile is what anonymous callers see of a venue.
type PublicProfile struct {
	ID          string    `json:"id"`
	VenueName   string    `json:"venueName"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Capacity    int       `json:"capacity"`
	ImageURL    string    `json:"imageUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p *Profile) Public() PublicProfile {
	return PublicProfile{
		ID:          p.ID,
		VenueName:   p.VenueName,
		Description: p.Description,
		Address:     p.Address,
		Capacity:    p.Capacity,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
}

// Refs lists every reference the profile's rows may be stored under,
// canonical first.
func (p *Profile) Refs() []string {
	return []string{p.ID, p.SubjectID}
}

type RegisterRequest struct {
	VenueName   string `json:"venueName" binding:"required,min=2,max=120"`
	Description string `json:"description" binding:"max=2000"`
	Address     string `json:"address" binding:"max=255"`
	Capacity    int    `json:"capacity" binding:"gte=0"`
	Email       string `json:"email" binding:"omitempty,email"`
}

type UpdateRequest struct {
	VenueName   *string `json:"venueName" binding:"omitempty,min=2,max=120"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	Address     *string `json:"address" binding:"omitempty,max=255"`
	Capacity    *int    `json:"capacity" binding:"omitempty,gte=0"`
	Email       *string `json:"email" binding:"omitempty,email"`
}

// ReconcileResult counts rows rewritten from the subject form to the
// canonical id. Dropped rows collided with an existing canonical row.
type ReconcileResult struct {
	RulesMoved    int64 `json:"rulesMoved"`
	RulesDropped  int64 `json:"rulesDropped"`
	BlocksMoved   int64 `json:"blocksMoved"`
	BlocksDropped int64 `json:"blocksDropped"`
}

func (r *ReconcileResult) Add(o *ReconcileResult) {
	if o == nil {
		return
	}
	r.RulesMoved += o.RulesMoved
	r.RulesDropped += o.RulesDropped
	r.BlocksMoved += o.BlocksMoved
	r.BlocksDropped += o.BlocksDropped
}

type ReconcileSummary struct {
	Profiles int `json:"profiles"`
	ReconcileResult
}

type DeleteResult struct {
	DeletedRules  int64 `json:"deletedRules"`
	DeletedBlocks int64 `json:"deletedBlocks"`
}
