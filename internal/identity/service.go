package identity

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"eventsbga/internal/availability"
	"eventsbga/internal/logger"
	"eventsbga/internal/storage"
)

// ImageUploader stores a venue image and returns its public URL.
type ImageUploader interface {
	UploadImage(ctx context.Context, key, contentType string, size int64, body io.Reader) (string, error)
}

type Service interface {
	Register(ctx context.Context, subject, email string, req RegisterRequest) (*Profile, error)
	GetBySubject(ctx context.Context, subject string) (*Profile, error)
	Resolve(ctx context.Context, ref string) (*Profile, error)
	Update(ctx context.Context, subject string, req UpdateRequest) (*Profile, error)
	Delete(ctx context.Context, subject string) (*DeleteResult, error)
	SetImage(ctx context.Context, subject, contentType string, size int64, body io.Reader) (*Profile, error)
	Reconcile(ctx context.Context, p *Profile) (*ReconcileResult, error)
	ReconcileAll(ctx context.Context) (*ReconcileSummary, error)

	availability.ManagerResolver
}

type service struct {
	repo   Repository
	cache  *availability.Cache
	images ImageUploader
}

// NewService wires the profile service. images may be nil, in which case
// image upload reports ErrStorageDisabled.
func NewService(repo Repository, cache *availability.Cache, images ImageUploader) Service {
	return &service{
		repo:   repo,
		cache:  cache,
		images: images,
	}
}

func (s *service) Register(ctx context.Context, subject, email string, req RegisterRequest) (*Profile, error) {
	if req.Email != "" {
		email = req.Email
	}

	p := &Profile{
		ID:          uuid.NewString(),
		SubjectID:   subject,
		Email:       email,
		VenueName:   strings.TrimSpace(req.VenueName),
		Description: req.Description,
		Address:     req.Address,
		Capacity:    req.Capacity,
	}

	created, moved, err := s.repo.Create(ctx, p, availability.DefaultHours())
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, created.Refs()...)
	logger.Info("manager registered",
		"profile_id", created.ID,
		"subject", subject,
		"rules_moved", moved.RulesMoved,
		"blocks_moved", moved.BlocksMoved,
	)

	return created, nil
}

func (s *service) GetBySubject(ctx context.Context, subject string) (*Profile, error) {
	return s.repo.GetBySubject(ctx, subject)
}

// Resolve looks the reference up as a subject first and as a profile id
// second.
func (s *service) Resolve(ctx context.Context, ref string) (*Profile, error) {
	if ref == "" {
		return nil, ErrProfileNotFound
	}

	p, err := s.repo.GetBySubject(ctx, ref)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	if _, perr := uuid.Parse(ref); perr != nil {
		return nil, ErrProfileNotFound
	}
	return s.repo.GetByID(ctx, ref)
}

func (s *service) ManagerRefs(ctx context.Context, ref string) ([]string, error) {
	p, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	return p.Refs(), nil
}

func (s *service) WriteRefs(ctx context.Context, ref string) ([]string, error) {
	p, err := s.Resolve(ctx, ref)
	switch {
	case err == nil:
		return p.Refs(), nil
	case errors.Is(err, ErrProfileNotFound):
		return []string{ref}, nil
	default:
		return nil, err
	}
}

func (s *service) Update(ctx context.Context, subject string, req UpdateRequest) (*Profile, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	if req.VenueName != nil {
		p.VenueName = strings.TrimSpace(*req.VenueName)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	if req.Capacity != nil {
		p.Capacity = *req.Capacity
	}
	if req.Email != nil {
		p.Email = *req.Email
	}

	return s.repo.Update(ctx, p)
}

func (s *service) Delete(ctx context.Context, subject string) (*DeleteResult, error) {
	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Delete(ctx, p)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, p.Refs()...)
	logger.Info("manager deleted",
		"profile_id", p.ID,
		"deleted_rules", result.DeletedRules,
		"deleted_blocks", result.DeletedBlocks,
	)
	return result, nil
}

func (s *service) SetImage(ctx context.Context, subject, contentType string, size int64, body io.Reader) (*Profile, error) {
	if s.images == nil {
		return nil, ErrStorageDisabled
	}

	p, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}

	ext, err := storage.ValidateImage(contentType, size)
	if err != nil {
		return nil, err
	}

	url, err := s.images.UploadImage(ctx, storage.VenueImageKey(p.ID, ext), contentType, size, body)
	if err != nil {
		return nil, err
	}

	return s.repo.SetImageURL(ctx, p.ID, url)
}

func (s *service) Reconcile(ctx context.Context, p *Profile) (*ReconcileResult, error) {
	result, err := s.repo.Reconcile(ctx, p)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, p.Refs()...)
	return result, nil
}

func (s *service) ReconcileAll(ctx context.Context) (*ReconcileSummary, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{}
	for i := range profiles {
		result, err := s.Reconcile(ctx, &profiles[i])
		if err != nil {
			logger.Error("reconcile failed", "profile_id", profiles[i].ID, "error", err)
			return nil, err
		}
		summary.Profiles++
		summary.Add(result)
	}

	logger.Info("legacy references reconciled",
		"profiles", summary.Profiles,
		"rules_moved", summary.RulesMoved,
		"blocks_moved", summary.BlocksMoved,
	)
	return summary, nil
}
