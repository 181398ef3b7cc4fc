package obligation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// ProviderError marks a transient upstream failure. The queue substrate
// retries it with backoff; it is never a permanent job failure on its own.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("provider %s: %v", e.Op, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

// Provider fetches reminder candidates.
type Provider interface {
	Obligations(ctx context.Context, policy Policy, statuses []string) ([]Obligation, error)
}

// Directory resolves notification targets.
type Directory interface {
	Owner(ctx context.Context, obligationID uint64) (Recipient, error)
	SeniorManagers(ctx context.Context, policy Policy, limit int) ([]Recipient, error)
}

// Store is the gorm-backed Provider and Directory.
type Store struct {
	DB *gorm.DB
}

func (s *Store) Obligations(ctx context.Context, policy Policy, statuses []string) ([]Obligation, error) {
	var out []Obligation
	err := s.DB.WithContext(ctx).
		Where("policy_type = ? AND status IN ?", policy, statuses).
		Order("due_date asc, id asc").
		Find(&out).Error
	if err != nil {
		return nil, &ProviderError{Op: "obligations", Err: err}
	}
	return out, nil
}

func (s *Store) Owner(ctx context.Context, obligationID uint64) (Recipient, error) {
	var o Obligation
	if err := s.DB.WithContext(ctx).Select("owner_id").First(&o, obligationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, &ProviderError{Op: "owner", Err: err}
	}

	var r Recipient
	if err := s.DB.WithContext(ctx).First(&r, o.OwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Recipient{}, ErrNotFound
		}
		return Recipient{}, &ProviderError{Op: "owner", Err: err}
	}
	return r, nil
}

func (s *Store) SeniorManagers(ctx context.Context, policy Policy, limit int) ([]Recipient, error) {
	var out []Recipient
	err := s.DB.WithContext(ctx).
		Where("role = ? AND (policy_scope = ? OR policy_scope = '')", RoleManager, policy).
		Order("hired_at asc, id asc").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, &ProviderError{Op: "senior_managers", Err: err}
	}
	return out, nil
}
