package citeproc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ppiankov/cslbridge/internal/model"
)

func TestComputeOrder_PreservesInputOrder(t *testing.T) {
	positions := []model.CitationPosition{
		{CitationID: "z", NoteIndex: "3"},
		{CitationID: "a"},
		{CitationID: "m", NoteIndex: 1},
	}

	order, err := ComputeOrder(positions)
	if err != nil {
		t.Fatalf("ComputeOrder: %v", err)
	}

	want := []model.ClusterPosition{{ID: "z", Note: 3}, {ID: "a"}, {ID: "m", Note: 1}}
	if len(order) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("entry %d: expected %+v, got %+v", i, want[i], order[i])
		}
	}
}

func TestComputeOrder_InvalidNote(t *testing.T) {
	_, err := ComputeOrder([]model.CitationPosition{{CitationID: "a", NoteIndex: "x"}})
	if !errors.Is(err, ErrInvalidNoteIndex) {
		t.Errorf("expected ErrInvalidNoteIndex, got %v", err)
	}
}

func positions(prefix string, n int) []model.CitationPosition {
	out := make([]model.CitationPosition, n)
	for i := range out {
		out[i] = model.CitationPosition{CitationID: fmt.Sprintf("%s%d", prefix, i), NoteIndex: i}
	}
	return out
}

func TestPreviewOrder_SplicesAtBoundary(t *testing.T) {
	previewed := model.ClusterPosition{ID: "preview", Note: 9}

	for pre := 0; pre <= 4; pre++ {
		for post := 0; post <= 4; post++ {
			order, err := PreviewOrder(positions("pre", pre), positions("post", post), previewed)
			if err != nil {
				t.Fatalf("PreviewOrder(%d, %d): %v", pre, post, err)
			}
			if len(order) != pre+1+post {
				t.Errorf("PreviewOrder(%d, %d): expected length %d, got %d", pre, post, pre+1+post, len(order))
				continue
			}
			if order[pre] != previewed {
				t.Errorf("PreviewOrder(%d, %d): expected previewed at %d, got %+v", pre, post, pre, order[pre])
			}
			for i := 0; i < pre; i++ {
				if order[i].ID != fmt.Sprintf("pre%d", i) {
					t.Errorf("PreviewOrder(%d, %d): entry %d is %q", pre, post, i, order[i].ID)
				}
			}
			for i := 0; i < post; i++ {
				if order[pre+1+i].ID != fmt.Sprintf("post%d", i) {
					t.Errorf("PreviewOrder(%d, %d): entry %d is %q", pre, post, pre+1+i, order[pre+1+i].ID)
				}
			}
		}
	}
}
