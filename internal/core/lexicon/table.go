package lexicon

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

var negations = foldedSet(
	"غير", "بدون", "بلا", "لا", "ليس", "ليست", "عدم", "مش",
	"not", "no", "non", "without", "un",
)

type tableEntry struct {
	folded string
	token  string
}

// Table maps source spellings onto a closed set of canonical tokens.
type Table struct {
	Name    string
	Default string

	tokens  []string
	allowed map[string]struct{}
	entries []tableEntry
}

func newTable(name, def string, values map[string][]string) (*Table, error) {
	t := &Table{
		Name:    name,
		Default: def,
		allowed: make(map[string]struct{}, len(values)),
	}
	for token, synonyms := range values {
		t.tokens = append(t.tokens, token)
		t.allowed[token] = struct{}{}
		t.add(token, strings.ReplaceAll(token, "_", " "))
		for _, syn := range synonyms {
			t.add(token, syn)
		}
	}
	if def != "" {
		if _, ok := t.allowed[def]; !ok {
			return nil, fmt.Errorf("lexicon: table %s: default %q is not an allowed token", name, def)
		}
	}
	sort.Strings(t.tokens)
	// Longest spelling first so "very good" beats "good"; ties by token for
	// deterministic results.
	sort.Slice(t.entries, func(i, j int) bool {
		a, b := t.entries[i], t.entries[j]
		if len(a.folded) != len(b.folded) {
			return len(a.folded) > len(b.folded)
		}
		if a.folded != b.folded {
			return a.folded < b.folded
		}
		return a.token < b.token
	})
	return t, nil
}

func (t *Table) add(token, spelling string) {
	folded := Fold(spelling)
	if folded == "" {
		return
	}
	t.entries = append(t.entries, tableEntry{folded: folded, token: token})
}

// Lookup resolves s by exact match first, then by the longest known spelling
// contained in s. A contained spelling preceded by a negation ("غير جيد",
// "not finished") leaves s unrecognised.
func (t *Table) Lookup(s string) (string, bool) {
	folded := Fold(s)
	if folded == "" {
		return "", false
	}
	for _, e := range t.entries {
		if e.folded == folded {
			return e.token, true
		}
	}
	for _, e := range t.entries {
		idx := indexTerm(folded, e.folded, 0)
		if idx < 0 {
			continue
		}
		if negatedAt(folded, idx) {
			return "", false
		}
		return e.token, true
	}
	return "", false
}

// Map resolves s or falls back to the table default. matched reports whether
// the input was recognised.
func (t *Table) Map(s string) (token string, matched bool) {
	if token, ok := t.Lookup(s); ok {
		return token, true
	}
	return t.Default, false
}

func (t *Table) Allows(token string) bool {
	_, ok := t.allowed[token]
	return ok
}

// Tokens lists the allowed tokens in lexical order.
func (t *Table) Tokens() []string {
	return append([]string(nil), t.tokens...)
}

func foldedSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[Fold(w)] = struct{}{}
	}
	return set
}

// negatedAt reports whether the word right before pos in a folded string is a
// negation. A conjunction clitic on it ("وغير") is ignored.
func negatedAt(folded string, pos int) bool {
	before := strings.TrimRightFunc(folded[:pos], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	fields := strings.Fields(before)
	if len(fields) == 0 {
		return false
	}
	word := fields[len(fields)-1]
	if i := strings.LastIndexFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}); i >= 0 {
		word = word[i+1:]
	}
	if _, ok := negations[word]; ok {
		return true
	}
	if rest, ok := strings.CutPrefix(word, "و"); ok {
		_, neg := negations[rest]
		return neg
	}
	return false
}
