package citeproc

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/ppiankov/cslbridge/internal/model"
)

// ItemProvider supplies reference records from the application's item store
type ItemProvider interface {
	RetrieveItem(ctx context.Context, id model.ItemID) (model.Reference, error)
}

// ItemProviderFunc adapts a function to ItemProvider
type ItemProviderFunc func(ctx context.Context, id model.ItemID) (model.Reference, error)

// RetrieveItem calls f(ctx, id)
func (f ItemProviderFunc) RetrieveItem(ctx context.Context, id model.ItemID) (model.Reference, error) {
	return f(ctx, id)
}

// LocaleRetriever supplies locale XML by language tag
type LocaleRetriever interface {
	RetrieveLocale(ctx context.Context, lang string) (string, error)
}

// System bundles the collaborators a session needs from the application
type System struct {
	Items   ItemProvider
	Locales LocaleRetriever
}

// ResolveReference retrieves an item and forces its "id" field to a string.
// Nothing is cached; provider errors stay in the returned error chain.
func ResolveReference(ctx context.Context, items ItemProvider, id model.ItemID) (model.Reference, error) {
	ref, err := items.RetrieveItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve item %v: %w", ErrReferenceResolution, id, err)
	}
	if ref == nil {
		return nil, fmt.Errorf("%w: retrieve item %v: empty record", ErrReferenceResolution, id)
	}

	refID, err := cast.ToStringE(ref["id"])
	if err != nil {
		return nil, fmt.Errorf("%w: item %v: id: %w", ErrReferenceResolution, id, err)
	}
	ref["id"] = refID

	return ref, nil
}
