package locale

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirSource reads locales-<tag>.xml files from a directory
type DirSource struct {
	Dir string
}

// RetrieveLocale reads the locale file for lang
func (d DirSource) RetrieveLocale(ctx context.Context, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tag, err := NormalizeTag(lang)
	if err != nil {
		return "", err
	}

	path := filepath.Join(d.Dir, FileName(tag))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s in %s", ErrLocaleNotFound, tag, d.Dir)
	}
	if err != nil {
		return "", fmt.Errorf("read locale: %w", err)
	}

	return string(data), nil
}
