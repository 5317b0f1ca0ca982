// Package i18n translates UI message codes. English is the default;
// Vietnamese is the other supported language.
package i18n

import "strings"

// Default is used when no supported language is requested.
const Default = "en"

var catalogues = map[string]map[string]string{
	"en": en,
	"vi": vi,
}

// Supported reports whether lang has a catalogue.
func Supported(lang string) bool {
	_, ok := catalogues[lang]
	return ok
}

// Languages lists the supported languages, default first.
func Languages() []string { return []string{"en", "vi"} }

// T returns the translation of code in lang. Unknown languages fall back
// to English and unknown codes to the code itself.
func T(lang, code string) string {
	if m, ok := catalogues[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := en[code]; ok {
		return s
	}
	return code
}

// DetectLanguage picks the first supported language of an Accept-Language
// header, ignoring region and quality values.
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(part)
		if i := strings.IndexByte(tag, ';'); i >= 0 {
			tag = tag[:i]
		}
		if i := strings.IndexByte(tag, '-'); i >= 0 {
			tag = tag[:i]
		}
		tag = strings.ToLower(strings.TrimSpace(tag))
		if Supported(tag) {
			return tag
		}
	}
	return Default
}

// Normalize returns lang when supported, otherwise the default.
func Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if Supported(lang) {
		return lang
	}
	return Default
}
