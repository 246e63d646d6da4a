package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/portfolio-api/internal/docstore"
	"github.com/jonathan/portfolio-api/internal/repository"
)

// RevocationsCollection holds one record per revoked subject.
const RevocationsCollection = "revocations"

// Revocation rejects every token issued to Subject before ValidAfter.
type Revocation struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	ValidAfter time.Time `json:"validAfter"`
}

// StoreRevocations keeps revocations in the document store so every process
// sharing the store sees them on the next verification.
type StoreRevocations struct {
	repo *repository.Repository[Revocation]
}

// NewStoreRevocations creates a revocation source over store.
func NewStoreRevocations(store docstore.Store) *StoreRevocations {
	return &StoreRevocations{
		repo: repository.New[Revocation](store, repository.Collection{Name: RevocationsCollection}),
	}
}

// ValidAfter implements RevocationSource.
func (s *StoreRevocations) ValidAfter(ctx context.Context, subject string) (time.Time, bool, error) {
	rev, err := s.repo.GetByField(ctx, "subject", subject)
	if errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return rev.ValidAfter, true, nil
}

// Revoke rejects all of subject's tokens issued before at. Token issue times
// have one-second resolution, so the cutoff is truncated to the second: tokens
// minted in the same second as the revocation, including a fresh login, stay
// valid. A later call moves the cutoff forward; an earlier one is ignored.
func (s *StoreRevocations) Revoke(ctx context.Context, subject string, at time.Time) error {
	if subject == "" {
		return fmt.Errorf("subject is required")
	}
	cutoff := at.UTC().Truncate(time.Second)

	existing, err := s.repo.GetByField(ctx, "subject", subject)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if _, err := s.repo.Create(ctx, Revocation{Subject: subject, ValidAfter: cutoff}); err != nil {
			return fmt.Errorf("failed to revoke %q: %w", subject, err)
		}
	case err != nil:
		return fmt.Errorf("failed to revoke %q: %w", subject, err)
	default:
		if !cutoff.After(existing.ValidAfter) {
			return nil
		}
		patch := docstore.Fields{"validAfter": cutoff.Format(time.RFC3339)}
		if _, err := s.repo.Update(ctx, existing.ID, patch); err != nil {
			return fmt.Errorf("failed to revoke %q: %w", subject, err)
		}
	}

	log.Printf("[auth] revoked tokens for %q issued before %s", subject, cutoff.Format(time.RFC3339))
	return nil
}
