package citeproc

import (
	"context"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/cast"

	"github.com/ppiankov/cslbridge/internal/model"
)

const (
	clusterIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	clusterIDLength   = 12
)

// IDGenerator returns a fresh opaque cluster identifier
type IDGenerator func() (string, error)

// NewClusterID generates a random 12-character cluster identifier
func NewClusterID() (string, error) {
	return gonanoid.Generate(clusterIDAlphabet, clusterIDLength)
}

// CiteMode maps the display modifiers of an item to a cite mode.
// Suppress-author takes precedence over author-only.
func CiteMode(item model.CitationItem) model.CiteMode {
	switch {
	case item.SuppressAuthor:
		return model.CiteModeSuppressAuthor
	case item.AuthorOnly:
		return model.CiteModeAuthorOnly
	default:
		return model.CiteModeDefault
	}
}

// NewCite builds the engine-facing cite for an item whose reference id is refID
func NewCite(item model.CitationItem, refID string) model.Cite {
	return model.Cite{
		ID:      refID,
		Mode:    CiteMode(item),
		Locator: item.Locator,
		Label:   item.Label,
		Prefix:  item.Prefix,
		Suffix:  item.Suffix,
	}
}

// NormalizeNoteIndex converts a string or integer note index to an int.
// nil, false, "" and 0 all mean "no note" and return 0. true and fractional
// numbers are rejected.
func NormalizeNoteIndex(v any) (int, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return 0, fmt.Errorf("%w: %v", ErrInvalidNoteIndex, v)
		}
		return 0, nil
	case float32:
		if float32(int64(x)) != x {
			return 0, fmt.Errorf("%w: %v", ErrInvalidNoteIndex, v)
		}
	case float64:
		if float64(int64(x)) != x {
			return 0, fmt.Errorf("%w: %v", ErrInvalidNoteIndex, v)
		}
	}

	if s, ok := v.(string); ok {
		// cast parses strings with base prefixes; note numbers are decimal
		s = strings.TrimLeft(strings.TrimSpace(s), "0")
		if s == "" {
			return 0, nil
		}
		v = s
	}

	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidNoteIndex, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidNoteIndex, n)
	}
	return n, nil
}

// buildCluster converts a citation into an engine cluster. Each cited
// reference is resolved and registered with the handle. A citation without an
// id gets a generated one, written back so later order updates use it.
// Any resolution failure aborts the whole build.
func (s *Session) buildCluster(ctx context.Context, citation *model.Citation) (model.Cluster, error) {
	if citation.ID == "" {
		id, err := s.newID()
		if err != nil {
			return model.Cluster{}, fmt.Errorf("generate cluster id: %w", err)
		}
		citation.ID = id
	}

	note, err := NormalizeNoteIndex(citation.NoteIndex)
	if err != nil {
		return model.Cluster{}, fmt.Errorf("citation %s: %w", citation.ID, err)
	}

	cites := make([]model.Cite, 0, len(citation.Items))
	for _, item := range citation.Items {
		ref, err := ResolveReference(ctx, s.system.Items, item.ID)
		if err != nil {
			return model.Cluster{}, fmt.Errorf("citation %s: %w", citation.ID, err)
		}
		if err := s.driver.InsertReference(ref); err != nil {
			return model.Cluster{}, fmt.Errorf("citation %s: insert reference: %w", citation.ID, err)
		}
		cites = append(cites, NewCite(item, ref["id"].(string)))
	}

	return model.Cluster{
		ID:    citation.ID,
		Cites: cites,
		Note:  note,
	}, nil
}
