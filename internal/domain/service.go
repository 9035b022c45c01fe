package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// GalleryService is the core domain service. It owns the business logic
// for accepting submissions, applying moderation transitions, and deciding
// which event shape to broadcast for each change.
//
// The event policy is deliberately coarse: a new submission publishes a
// cheap NEW_IMAGE event carrying only that record, while any visibility
// toggle publishes an UPDATE_IMAGES event carrying the entire visible set.
// Toggles are rare, so re-sending the full list avoids a diff protocol.
type GalleryService struct {
	repo        SubmissionRepository
	broadcaster Broadcaster
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewGalleryService creates a GalleryService over the given repository and
// broadcaster.
func NewGalleryService(repo SubmissionRepository, broadcaster Broadcaster, logger *slog.Logger) *GalleryService {
	return &GalleryService{
		repo:        repo,
		broadcaster: broadcaster,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Submit validates and appends a new submission, then broadcasts it to all
// connected displays. Returns the persisted record.
func (s *GalleryService) Submit(ctx context.Context, req NewSubmission) (*Submission, error) {
	if err := s.validate.Struct(req); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return nil, &ValidationError{Field: errs[0].Field(), Reason: "is required"}
		}
		return nil, fmt.Errorf("validate submission: %w", err)
	}

	sub := &Submission{
		SenderName:    req.SenderName,
		SenderContact: req.SenderContact,
		Caption:       req.Caption,
		MediaURL:      req.MediaURL,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.logger.Info("submission accepted", "uid", sub.ID, "sender", sub.SenderName)
	s.broadcaster.Publish(NewImageEvent(*sub))

	return sub, nil
}

// SetVisibility applies a moderation transition and broadcasts the
// resulting visible set as a total overwrite. The toggle itself is
// idempotent; the broadcast happens even when the flag didn't change, so
// displays converge on the store's current state either way.
func (s *GalleryService) SetVisibility(ctx context.Context, id string, visible bool) error {
	if err := s.repo.SetVisibility(ctx, id, visible); err != nil {
		return fmt.Errorf("set visibility: %w", err)
	}

	current, err := s.repo.ListVisible(ctx)
	if err != nil {
		return fmt.Errorf("list visible after toggle: %w", err)
	}

	s.logger.Info("visibility updated", "uid", id, "visible", visible, "visible_total", len(current))
	s.broadcaster.Publish(UpdateImagesEvent(current))

	return nil
}

// ListVisible returns the currently visible submissions in display order.
func (s *GalleryService) ListVisible(ctx context.Context) ([]Submission, error) {
	return s.repo.ListVisible(ctx)
}

// ListAll returns every submission regardless of moderation flag, for the
// admin view.
func (s *GalleryService) ListAll(ctx context.Context) ([]Submission, error) {
	return s.repo.ListAll(ctx)
}

// CountVisible returns the number of currently visible submissions.
func (s *GalleryService) CountVisible(ctx context.Context) (int, error) {
	return s.repo.CountVisible(ctx)
}
