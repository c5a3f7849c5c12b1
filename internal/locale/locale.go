// Package locale retrieves CSL locale XML by language tag from a local
// directory or the remote locales repository, with caching in front.
package locale

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLocaleNotFound means a source has no locale for the tag
	ErrLocaleNotFound = errors.New("locale not found")

	// ErrDisallowed means robots.txt forbids fetching the locale URL
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// Retriever supplies locale XML for a language tag
type Retriever interface {
	RetrieveLocale(ctx context.Context, lang string) (string, error)
}

// RetrieverFunc adapts a function to Retriever
type RetrieverFunc func(ctx context.Context, lang string) (string, error)

// RetrieveLocale calls f(ctx, lang)
func (f RetrieverFunc) RetrieveLocale(ctx context.Context, lang string) (string, error) {
	return f(ctx, lang)
}

// primaryDialects maps bare languages to the dialect the locales repository ships
var primaryDialects = map[string]string{
	"ar": "ar",
	"ca": "ca-AD",
	"cs": "cs-CZ",
	"da": "da-DK",
	"de": "de-DE",
	"el": "el-GR",
	"en": "en-US",
	"es": "es-ES",
	"fi": "fi-FI",
	"fr": "fr-FR",
	"he": "he-IL",
	"hu": "hu-HU",
	"it": "it-IT",
	"ja": "ja-JP",
	"ko": "ko-KR",
	"nb": "nb-NO",
	"nl": "nl-NL",
	"pl": "pl-PL",
	"pt": "pt-PT",
	"ro": "ro-RO",
	"ru": "ru-RU",
	"sv": "sv-SE",
	"tr": "tr-TR",
	"uk": "uk-UA",
	"zh": "zh-CN",
}

// NormalizeTag canonicalizes a language tag the way locale file names spell it:
// "en_us" becomes "en-US", "de" becomes "de-DE".
func NormalizeTag(lang string) (string, error) {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return "", fmt.Errorf("empty language tag")
	}

	parts := strings.Split(lang, "-")
	for _, p := range parts {
		if p == "" || !isAlnum(p) {
			return "", fmt.Errorf("invalid language tag %q", lang)
		}
	}

	parts[0] = strings.ToLower(parts[0])
	if len(parts) == 1 {
		if dialect, ok := primaryDialects[parts[0]]; ok {
			return dialect, nil
		}
		return parts[0], nil
	}

	if len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-"), nil
}

// FileName returns the locale file name for a normalized tag
func FileName(tag string) string {
	return "locales-" + tag + ".xml"
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
