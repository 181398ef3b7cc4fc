package recipient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duewatch/internal/obligation"
)

type fakeDirectory struct {
	owner      obligation.Recipient
	ownerErr   error
	managers   []obligation.Recipient
	managerErr error

	gotPolicy obligation.Policy
	gotLimit  int
}

func (f *fakeDirectory) Owner(ctx context.Context, obligationID uint64) (obligation.Recipient, error) {
	return f.owner, f.ownerErr
}

func (f *fakeDirectory) SeniorManagers(ctx context.Context, policy obligation.Policy, limit int) ([]obligation.Recipient, error) {
	f.gotPolicy = policy
	f.gotLimit = limit
	return f.managers, f.managerErr
}

func rec(name, addr string) obligation.Recipient {
	return obligation.Recipient{Name: name, Address: addr, HiredAt: time.Now()}
}

func TestResolveDedupesByAddress(t *testing.T) {
	dir := &fakeDirectory{
		owner: rec("Ana", "ana@example.com"),
		managers: []obligation.Recipient{
			rec("Bruno", "bruno@example.com"),
			rec("Ana Souza", "ANA@example.com"), // same inbox as the owner
			rec("Carla", "carla@example.com"),
		},
	}
	r := &Resolver{Directory: dir}

	got, err := r.Resolve(context.Background(), obligation.Obligation{ID: 1, PolicyType: obligation.PolicyCoverage})
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Owner first, duplicates dropped, first-seen order preserved.
	assert.Equal(t, "ana@example.com", got[0].Address)
	assert.Equal(t, "bruno@example.com", got[1].Address)
	assert.Equal(t, "carla@example.com", got[2].Address)

	assert.Equal(t, obligation.PolicyCoverage, dir.gotPolicy)
	assert.Equal(t, DefaultManagers, dir.gotLimit)
}

func TestResolveOwnerFailureReturnsEmptySet(t *testing.T) {
	dir := &fakeDirectory{ownerErr: errors.New("directory down")}
	r := &Resolver{Directory: dir}

	got, err := r.Resolve(context.Background(), obligation.Obligation{ID: 2})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int64(1), r.OwnerFailures())
}

func TestResolveManagerFailurePropagates(t *testing.T) {
	dir := &fakeDirectory{
		owner:      rec("Ana", "ana@example.com"),
		managerErr: &obligation.ProviderError{Op: "senior_managers", Err: errors.New("timeout")},
	}
	r := &Resolver{Directory: dir}

	_, err := r.Resolve(context.Background(), obligation.Obligation{ID: 3})
	var perr *obligation.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, r.OwnerFailures())
}

func TestResolveSkipsBlankAddresses(t *testing.T) {
	dir := &fakeDirectory{
		owner:    rec("Ana", "ana@example.com"),
		managers: []obligation.Recipient{rec("Ghost", "  ")},
	}
	r := &Resolver{Directory: dir, Managers: 1}

	got, err := r.Resolve(context.Background(), obligation.Obligation{ID: 4})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, dir.gotLimit)
}
