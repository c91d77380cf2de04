package i18n

import "sort"

var languageNames = map[string]string{
	"en": "English",
	"ru": "Russian",
}

func Languages() []string {
	codes := make([]string, 0, len(languageNames))
	for code := range languageNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
