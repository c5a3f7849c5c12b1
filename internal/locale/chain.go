package locale

import (
	"context"
	"errors"
	"fmt"
)

// Chain tries each retriever in order and returns the first locale found
type Chain []Retriever

// RetrieveLocale asks every source until one succeeds.
// When all fail the errors are joined; ErrLocaleNotFound stays matchable.
func (c Chain) RetrieveLocale(ctx context.Context, lang string) (string, error) {
	if len(c) == 0 {
		return "", fmt.Errorf("%w: %s: no sources", ErrLocaleNotFound, lang)
	}

	var errs []error
	for _, source := range c {
		xml, err := source.RetrieveLocale(ctx, lang)
		if err == nil {
			return xml, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		errs = append(errs, err)
	}

	return "", fmt.Errorf("retrieve locale %s: %w", lang, errors.Join(errs...))
}
