package commands

import (
	"context"
	"fmt"
	"sort"
)

// seedPrograms merges explicit ids, configured ids and, when discovery is on,
// every program already in the store. The result is sorted and free of duplicates.
func (rt *runtime) seedPrograms(ctx context.Context, explicit []string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range explicit {
		add(id)
	}
	for _, id := range rt.cfg.Reconciler.Programs {
		add(id)
	}

	if rt.cfg.Reconciler.DiscoverFromStore {
		stored, err := rt.store.ListProgramIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored programs: %w", err)
		}
		for _, id := range stored {
			add(id)
		}
	}

	sort.Strings(ids)
	return ids, nil
}
