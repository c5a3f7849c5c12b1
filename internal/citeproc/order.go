package citeproc

import (
	"fmt"

	"github.com/ppiankov/cslbridge/internal/model"
)

// ComputeOrder normalizes (citation id, note index) pairs into cluster
// positions. Input order is preserved; callers supply true document order.
func ComputeOrder(positions []model.CitationPosition) ([]model.ClusterPosition, error) {
	order := make([]model.ClusterPosition, 0, len(positions))
	for _, p := range positions {
		note, err := NormalizeNoteIndex(p.NoteIndex)
		if err != nil {
			return nil, fmt.Errorf("citation %s: %w", p.CitationID, err)
		}
		order = append(order, model.ClusterPosition{ID: p.CitationID, Note: note})
	}
	return order, nil
}

// PreviewOrder returns the document order with previewed spliced in between
// the clusters before and after the insertion point
func PreviewOrder(before, after []model.CitationPosition, previewed model.ClusterPosition) ([]model.ClusterPosition, error) {
	pre, err := ComputeOrder(before)
	if err != nil {
		return nil, err
	}
	post, err := ComputeOrder(after)
	if err != nil {
		return nil, err
	}

	order := make([]model.ClusterPosition, 0, len(pre)+1+len(post))
	order = append(order, pre...)
	order = append(order, previewed)
	order = append(order, post...)
	return order, nil
}
