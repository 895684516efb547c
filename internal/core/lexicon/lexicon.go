// Package lexicon holds the static bilingual tables used by normalization,
// image correlation and the mapping report. Tables are data, loaded from YAML
// once per process.
package lexicon

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/appraisal-intelligence/internal/core/domain"
)

//go:embed data/lexicon.yaml
var embeddedTables []byte

type fileFormat struct {
	Version int                  `yaml:"version"`
	Truthy  []string             `yaml:"truthy"`
	Enums   map[string]tableSpec `yaml:"enums"`
	Rooms   map[string][]string  `yaml:"rooms"`

	Gazetteer [][2]string `yaml:"gazetteer"`

	ImageCategories []struct {
		Category string   `yaml:"category"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"image_categories"`
	DiscardPatterns []string `yaml:"discard_patterns"`

	Suggestions []struct {
		Pattern    string `yaml:"pattern"`
		Suggestion string `yaml:"suggestion"`
	} `yaml:"suggestions"`
	DefaultSuggestion string `yaml:"default_suggestion"`
}

type tableSpec struct {
	Default string              `yaml:"default"`
	Values  map[string][]string `yaml:"values"`
}

// CategoryPatterns is one ordered entry of the image keyword table.
type CategoryPatterns struct {
	Category domain.ImageCategory
	Patterns []*regexp.Regexp
}

// Matches reports whether any pattern matches folded text.
func (c CategoryPatterns) Matches(folded string) bool {
	for _, p := range c.Patterns {
		if p.MatchString(folded) {
			return true
		}
	}
	return false
}

type gazetteerEntry struct {
	arabic  string
	words   []string
	english string
}

type suggestionRule struct {
	pattern    *regexp.Regexp
	suggestion string
}

type Lexicon struct {
	Version int

	truthy     map[string]struct{}
	enums      map[string]*Table
	rooms      *Table
	gazetteer  []gazetteerEntry
	categories []CategoryPatterns
	discard    []*regexp.Regexp

	suggestions       []suggestionRule
	defaultSuggestion string
}

var (
	defaultOnce sync.Once
	defaultLex  *Lexicon
	defaultErr  error
)

// Default returns the embedded tables. They are parsed on first use and
// shared afterwards; a broken embedded file is a programming error.
func Default() *Lexicon {
	defaultOnce.Do(func() {
		defaultLex, defaultErr = Load(bytes.NewReader(embeddedTables))
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("lexicon: embedded tables: %v", defaultErr))
	}
	return defaultLex
}

// Load parses a lexicon document.
func Load(r io.Reader) (*Lexicon, error) {
	var raw fileFormat
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode lexicon yaml: %w", err)
	}

	lex := &Lexicon{
		Version:           raw.Version,
		truthy:            make(map[string]struct{}, len(raw.Truthy)),
		enums:             make(map[string]*Table, len(raw.Enums)),
		defaultSuggestion: raw.DefaultSuggestion,
	}
	for _, token := range raw.Truthy {
		lex.truthy[Fold(token)] = struct{}{}
	}

	for name, spec := range raw.Enums {
		table, err := newTable(name, spec.Default, spec.Values)
		if err != nil {
			return nil, err
		}
		lex.enums[name] = table
	}

	rooms, err := newTable("rooms", "", raw.Rooms)
	if err != nil {
		return nil, err
	}
	lex.rooms = rooms

	for _, pair := range raw.Gazetteer {
		if strings.TrimSpace(pair[0]) == "" {
			continue
		}
		folded := Fold(pair[0])
		words, _ := splitWords(folded)
		if len(words) == 0 {
			continue
		}
		lex.gazetteer = append(lex.gazetteer, gazetteerEntry{arabic: folded, words: words, english: pair[1]})
	}
	sort.SliceStable(lex.gazetteer, func(i, j int) bool {
		return len(lex.gazetteer[i].arabic) > len(lex.gazetteer[j].arabic)
	})

	for _, entry := range raw.ImageCategories {
		category := domain.ImageCategory(entry.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("lexicon: unknown image category %q", entry.Category)
		}
		compiled, err := compileAll(entry.Patterns)
		if err != nil {
			return nil, fmt.Errorf("lexicon: category %s: %w", entry.Category, err)
		}
		lex.categories = append(lex.categories, CategoryPatterns{Category: category, Patterns: compiled})
	}

	lex.discard, err = compileAll(raw.DiscardPatterns)
	if err != nil {
		return nil, fmt.Errorf("lexicon: discard patterns: %w", err)
	}

	for _, s := range raw.Suggestions {
		re, err := regexp.Compile(Fold(s.Pattern))
		if err != nil {
			return nil, fmt.Errorf("lexicon: suggestion pattern %q: %w", s.Pattern, err)
		}
		lex.suggestions = append(lex.suggestions, suggestionRule{pattern: re, suggestion: s.Suggestion})
	}

	return lex, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(Fold(p))
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// IsTruthy tests s against the bilingual truthy token set.
func (l *Lexicon) IsTruthy(s string) bool {
	_, ok := l.truthy[Fold(s)]
	return ok
}

// Enum returns the named enum table.
func (l *Lexicon) Enum(name string) (*Table, bool) {
	t, ok := l.enums[name]
	return t, ok
}

// Room resolves an English or Arabic room name to its canonical token.
func (l *Lexicon) Room(s string) (string, bool) {
	return l.rooms.Lookup(s)
}

// ImageCategories returns the keyword sets in match order.
func (l *Lexicon) ImageCategories() []CategoryPatterns {
	return l.categories
}

// IsDiscardText reports signature or stamp wording in folded text.
func (l *Lexicon) IsDiscardText(folded string) bool {
	for _, p := range l.discard {
		if p.MatchString(folded) {
			return true
		}
	}
	return false
}

// Suggest proposes where an unmapped key could be folded in.
func (l *Lexicon) Suggest(key string) string {
	folded := Fold(strings.ReplaceAll(key, "_", " "))
	for _, rule := range l.suggestions {
		if rule.pattern.MatchString(folded) {
			return rule.suggestion
		}
	}
	return l.defaultSuggestion
}

// TranslateAddress replaces known Arabic place names and address vocabulary
// with English equivalents, longest entries first. A name may carry an
// attached conjunction or preposition ("بالدقي", "والمعادي"). Words that are
// not recognised keep their original spelling. changed is false when nothing
// was recognised.
func (l *Lexicon) TranslateAddress(arabic string) (string, bool) {
	words, seps := splitWords(arabic)
	if len(words) == 0 {
		return "", false
	}
	folded := make([]string, len(words))
	for i, w := range words {
		folded[i] = Fold(w)
	}

	var b strings.Builder
	b.WriteString(seps[0])
	changed := false
	for i := 0; i < len(words); {
		entry, clitic, ok := l.matchGazetteer(folded, seps, i)
		if !ok {
			b.WriteString(words[i])
			b.WriteString(seps[i+1])
			i++
			continue
		}
		changed = true
		b.WriteString(cliticEnglish(clitic))
		b.WriteString(entry.english)
		i += len(entry.words)
		next := seps[i]
		if strings.HasSuffix(entry.english, ".") {
			next = strings.TrimPrefix(next, ".")
		}
		b.WriteString(next)
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	text = strings.ReplaceAll(text, "،", ",")
	return text, changed
}

// matchGazetteer finds the entry starting at word i. Exact spellings win over
// clitic-prefixed ones.
func (l *Lexicon) matchGazetteer(folded, seps []string, i int) (gazetteerEntry, string, bool) {
	for _, allowClitic := range []bool{false, true} {
		for _, entry := range l.gazetteer {
			if clitic, ok := entry.matchAt(folded, seps, i, allowClitic); ok {
				return entry, clitic, true
			}
		}
	}
	return gazetteerEntry{}, "", false
}

func (e gazetteerEntry) matchAt(folded, seps []string, i int, allowClitic bool) (string, bool) {
	n := len(e.words)
	if i+n > len(folded) {
		return "", false
	}
	for j := 1; j < n; j++ {
		// Multi-word names must not span punctuation.
		if folded[i+j] != e.words[j] || strings.TrimSpace(seps[i+j]) != "" {
			return "", false
		}
	}
	if folded[i] == e.words[0] {
		return "", true
	}
	if !allowClitic {
		return "", false
	}
	return splitClitic(folded[i], e.words[0])
}

// splitClitic reports whether word is term with an attached و/ف conjunction
// and/or a ب/ل preposition. ل before the article absorbs its alef ("للقاهرة").
func splitClitic(word, term string) (string, bool) {
	for _, conj := range []string{"", "و", "ف"} {
		rest, ok := strings.CutPrefix(word, conj)
		if !ok {
			continue
		}
		if conj != "" && rest == term {
			return conj, true
		}
		for _, prep := range []string{"ب", "ل"} {
			after, ok := strings.CutPrefix(rest, prep)
			if !ok || after == "" {
				continue
			}
			if after == term || (prep == "ل" && strings.HasPrefix(term, "ال") && "ا"+after == term) {
				return conj + prep, true
			}
		}
	}
	return "", false
}

func cliticEnglish(clitic string) string {
	var parts []string
	for _, r := range clitic {
		switch r {
		case 'و', 'ف':
			parts = append(parts, "and ")
		case 'ب':
			parts = append(parts, "in ")
		case 'ل':
			parts = append(parts, "to ")
		}
	}
	return strings.Join(parts, "")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// splitWords cuts s into words and the separators around them. seps has one
// more element than words: seps[i] precedes words[i].
func splitWords(s string) (words, seps []string) {
	inWord := false
	start := 0
	for i, r := range s {
		if isWordRune(r) == inWord {
			continue
		}
		if inWord {
			words = append(words, s[start:i])
		} else {
			seps = append(seps, s[start:i])
		}
		start = i
		inWord = !inWord
	}
	if inWord {
		words = append(words, s[start:])
		seps = append(seps, "")
	} else {
		seps = append(seps, s[start:])
	}
	return words, seps
}
