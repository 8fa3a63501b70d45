package curriculum

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// languageIndex resolves user-supplied language names ("Spanish", "spanish",
// "es-MX") to a supported Language.
type languageIndex struct {
	ordered []Language
	byKey   map[string]int
	tags    []language.Tag
	matcher language.Matcher
}

func newLanguageIndex(langs []Language) (*languageIndex, error) {
	idx := &languageIndex{byKey: make(map[string]int)}
	for i, l := range langs {
		tag, err := language.Parse(l.Tag)
		if err != nil {
			return nil, fmt.Errorf("language %q: invalid tag %q: %w", l.Slug, l.Tag, err)
		}
		l.NativeName = display.Self.Name(tag)
		idx.ordered = append(idx.ordered, l)
		idx.tags = append(idx.tags, tag)
		for _, key := range []string{l.Slug, l.Name, l.NativeName} {
			if key != "" {
				idx.byKey[foldKey(key)] = i
			}
		}
	}
	idx.matcher = language.NewMatcher(idx.tags)
	return idx, nil
}

func (idx *languageIndex) lookup(name string) (Language, bool) {
	name = strings.TrimSpace(name)
	if name == "" || len(idx.ordered) == 0 {
		return Language{}, false
	}
	if i, ok := idx.byKey[foldKey(name)]; ok {
		return idx.ordered[i], true
	}
	tag, err := language.Parse(name)
	if err != nil {
		return Language{}, false
	}
	_, i, conf := idx.matcher.Match(tag)
	if conf < language.High {
		return Language{}, false
	}
	return idx.ordered[i], true
}

// Language resolves a target language by slug, English name, native name or
// BCP 47 tag.
func (c *Catalog) Language(name string) (Language, bool) {
	return c.languages.lookup(name)
}

// Languages returns every supported target language.
func (c *Catalog) Languages() []Language {
	return append([]Language(nil), c.languages.ordered...)
}

// DisplayLanguage returns the English name for a target language, or the
// input unchanged when it is not a supported language.
func (c *Catalog) DisplayLanguage(name string) string {
	if l, ok := c.Language(name); ok {
		return l.Name
	}
	return name
}

// foldKey case-folds a lookup key. A Caser is stateful, so one is created per
// call.
func foldKey(s string) string {
	return cases.Fold().String(s)
}
