package notify

import (
	"time"

	"golang.org/x/text/language"
)

// DefaultLocale is used when a message carries no locale or an
// unparseable one.
const DefaultLocale = "en"

var supportedLocales = []language.Tag{
	language.English, // first entry is the fallback
	language.Dutch,
	language.German,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// matchLocale resolves a stored locale string to a supported language tag,
// falling back to English for anything unknown.
func matchLocale(locale string) language.Tag {
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, index, _ := localeMatcher.Match(tag)
	return supportedLocales[index]
}

// formatDate renders a calendar date the way the recipient's locale expects.
func formatDate(tag language.Tag, t time.Time) string {
	base, _ := tag.Base()
	switch base.String() {
	case "nl":
		return t.Format("02-01-2006")
	case "de":
		return t.Format("02.01.2006")
	default:
		return t.Format("January 2, 2006")
	}
}
