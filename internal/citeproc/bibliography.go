package citeproc

import (
	"fmt"

	"github.com/ppiankov/cslbridge/internal/model"
)

// legacyMetaFields maps engine bibliography field names to legacy names
var legacyMetaFields = map[string]string{
	"maxOffset":        "maxoffset",
	"lineSpacing":      "linespacing",
	"entrySpacing":     "entryspacing",
	"hangingIndent":    "hangingindent",
	"secondFieldAlign": "second-field-align",
}

// legacyFormatMetaFields maps formatMeta fields to legacy names
var legacyFormatMetaFields = map[string]string{
	"markupPre":  "bibstart",
	"markupPost": "bibend",
}

const (
	htmlEntryOpen  = `<div class="csl-entry">`
	htmlEntryClose = `</div>`
)

// MakeBibliography returns the legacy bibliography metadata and the formatted
// entries, both in the order the engine returns them
func (s *Session) MakeBibliography() (model.BibliographyMeta, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.active(); err != nil {
		return nil, nil, err
	}

	engineMeta, err := s.driver.BibliographyMeta()
	if err != nil {
		return nil, nil, fmt.Errorf("bibliography meta: %w", err)
	}
	entries, err := s.driver.MakeBibliography()
	if err != nil {
		return nil, nil, fmt.Errorf("make bibliography: %w", err)
	}

	meta := LegacyMeta(engineMeta)

	values := make([]string, 0, len(entries))
	entryIDs := make([][]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, WrapEntry(e.Value, s.cfg.Format))
		entryIDs = append(entryIDs, []string{e.ID})
	}
	meta["entry_ids"] = entryIDs

	return meta, values, nil
}

// LegacyMeta translates engine metadata into the legacy shape, keeping the
// engine field names alongside the legacy ones. bibstart and bibend are
// absent when the engine reports no formatMeta.
func LegacyMeta(engineMeta model.EngineBibliographyMeta) model.BibliographyMeta {
	fields := engineMeta.Fields()
	meta := make(model.BibliographyMeta, len(fields)*2)

	for name, value := range fields {
		meta[name] = value
		if legacy, ok := legacyMetaFields[name]; ok {
			meta[legacy] = value
		}
	}

	if fm, ok := fields["formatMeta"].(map[string]any); ok {
		for name, value := range fm {
			if legacy, ok := legacyFormatMetaFields[name]; ok {
				meta[legacy] = value
			}
		}
	}

	return meta
}

// WrapEntry wraps one bibliography entry for the output format
func WrapEntry(value, format string) string {
	switch format {
	case "html":
		return htmlEntryOpen + value + htmlEntryClose
	case "plain":
		return value + "\n"
	default:
		return value
	}
}
