// Package recipient builds the notification target list for one obligation:
// the obligation's owner plus the most senior managers for its policy.
package recipient

import (
	"context"
	"log"
	"strings"
	"sync/atomic"

	"duewatch/internal/obligation"
)

const DefaultManagers = 3

type Resolver struct {
	Directory obligation.Directory
	Managers  int // most-senior managers to include; DefaultManagers when zero

	ownerFailures atomic.Int64
}

// OwnerFailures counts owner lookups that failed since process start.
func (r *Resolver) OwnerFailures() int64 { return r.ownerFailures.Load() }

// Resolve returns the deduplicated target list, owner first. An owner lookup
// failure is not fatal for the batch: it is logged and counted, and the empty
// set tells the caller to skip the obligation rather than send to nobody.
// Manager lookup failures do propagate; the substrate retries those.
func (r *Resolver) Resolve(ctx context.Context, o obligation.Obligation) ([]obligation.Recipient, error) {
	owner, err := r.Directory.Owner(ctx, o.ID)
	if err != nil {
		r.ownerFailures.Add(1)
		log.Printf("recipient: owner lookup failed obligation=%d: %v\n", o.ID, err)
		return nil, nil
	}

	limit := r.Managers
	if limit <= 0 {
		limit = DefaultManagers
	}
	managers, err := r.Directory.SeniorManagers(ctx, o.PolicyType, limit)
	if err != nil {
		return nil, err
	}

	return dedupe(append([]obligation.Recipient{owner}, managers...)), nil
}

// dedupe keeps first-seen order and compares addresses case-insensitively.
func dedupe(in []obligation.Recipient) []obligation.Recipient {
	seen := make(map[string]struct{}, len(in))
	out := make([]obligation.Recipient, 0, len(in))
	for _, r := range in {
		key := strings.ToLower(strings.TrimSpace(r.Address))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
