package citeproc

import (
	"context"
	"fmt"

	"github.com/ppiankov/cslbridge/internal/model"
)

// UpdateUncitedItems registers the given items with the handle and restricts
// uncited bibliography inclusion to exactly this set, replacing the previous one.
func (s *Session) UpdateUncitedItems(ctx context.Context, ids []model.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return err
	}
	return s.updateUncitedItems(ctx, ids)
}

// UpdateItems is an alias of UpdateUncitedItems kept for older callers
func (s *Session) UpdateItems(ctx context.Context, ids []model.ItemID) error {
	return s.UpdateUncitedItems(ctx, ids)
}

func (s *Session) updateUncitedItems(ctx context.Context, ids []model.ItemID) error {
	specific := make([]string, 0, len(ids))
	for _, id := range ids {
		ref, err := ResolveReference(ctx, s.system.Items, id)
		if err != nil {
			return fmt.Errorf("uncited: %w", err)
		}
		if err := s.driver.InsertReference(ref); err != nil {
			return fmt.Errorf("uncited: insert reference %v: %w", id, err)
		}
		specific = append(specific, ref["id"].(string))
	}

	if err := s.driver.IncludeUncited(model.IncludeUncited{Specific: specific}); err != nil {
		return fmt.Errorf("include uncited: %w", err)
	}
	return nil
}
