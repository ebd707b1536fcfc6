package identity

import "context"

type Repository interface {
	// Create inserts the profile, moves legacy rows written under its subject
	// to the new id and provisions the default week, all in one transaction.
	Create(ctx context.Context, p *Profile, defaultHours []int) (*Profile, *ReconcileResult, error)
	GetBySubject(ctx context.Context, subject string) (*Profile, error)
	GetByID(ctx context.Context, id string) (*Profile, error)
	Update(ctx context.Context, p *Profile) (*Profile, error)
	SetImageURL(ctx context.Context, id, url string) (*Profile, error)
	Delete(ctx context.Context, p *Profile) (*DeleteResult, error)
	Reconcile(ctx context.Context, p *Profile) (*ReconcileResult, error)
	List(ctx context.Context) ([]Profile, error)
}
