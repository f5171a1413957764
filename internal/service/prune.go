package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

// PruneResult summarizes a prune run.
type PruneResult struct {
	OwnersChecked int
	OwnersMissing []string
	Evicted       int
}

// Prune checks every owner referenced by the descriptor store and evicts the
// descriptors of owners that no longer exist. progress, if set, is called
// after each owner is checked.
func (s *Service) Prune(ctx context.Context, progress func(done, total int)) (*PruneResult, error) {
	ids := s.store.OwnerIDs()
	slices.Sort(ids)

	result := &PruneResult{}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		owner, err := database.WithRetryValue(ctx, func() (*database.Owner, error) {
			return s.owners.GetOwner(ctx, id)
		})
		if err != nil {
			return result, fmt.Errorf("verify owner %s: %w", id, err)
		}
		result.OwnersChecked++

		if owner == nil {
			removed, err := s.store.EvictOwner(id)
			result.Evicted += removed
			result.OwnersMissing = append(result.OwnersMissing, id)
			if err != nil {
				return result, fmt.Errorf("%w: persist descriptors: %w", database.ErrStorageUnavailable, err)
			}
			s.logger.Info("pruned descriptors of missing owner", zap.String("owner_id", id), zap.Int("removed", removed))
		}

		if progress != nil {
			progress(i+1, len(ids))
		}
	}
	return result, nil
}
