package normalize

import (
	"regexp"
	"strings"

	"github.com/kirillkom/appraisal-intelligence/internal/core/lexicon"
)

type MaterialFormat string

const (
	FormatEmpty      MaterialFormat = ""
	FormatRoomByRoom MaterialFormat = "room_by_room"
	FormatFlat       MaterialFormat = "flat"
	FormatMixed      MaterialFormat = "mixed"
)

// MaterialList is a parsed floor, wall or exterior finish description.
type MaterialList struct {
	Format MaterialFormat
	// General holds flat-list materials in first-seen order, de-duplicated.
	General []string
	// PerRoom maps canonical room tokens to their materials.
	PerRoom map[string][]string
	// Unresolved collects room names that were not recognised.
	Unresolved []string
}

var (
	roomSeparators     = regexp.MustCompile(`\s*(?:[,،/&+]|\s+و|\s+and\s+)\s*`)
	materialSeparators = regexp.MustCompile(`\s*(?:[/&+]|\s+و\s+|\s+and\s+)\s*`)
)

// ParseMaterials detects the description style and maps every material
// through table. A ':' inside a segment marks a "room: material" pair; other
// segments are flat list items that may carry rooms in parentheses, e.g.
// "سيراميك (نوم)". Segments are parsed independently, so a field mixing both
// styles is still parsed and reported as FormatMixed.
func ParseMaterials(raw string, table *lexicon.Table, lex *lexicon.Lexicon) MaterialList {
	out := MaterialList{PerRoom: map[string][]string{}}
	segments := splitTopLevel(raw)
	if len(segments) == 0 {
		return out
	}

	pairs, flats := 0, 0
	for _, segment := range segments {
		if room, material, ok := splitRoomPair(segment); ok {
			pairs++
			token, known := lex.Room(room)
			if !known {
				out.Unresolved = append(out.Unresolved, room)
				for _, m := range splitMaterials(material, table) {
					out.General = appendUnique(out.General, m)
				}
				continue
			}
			for _, m := range splitMaterials(material, table) {
				out.PerRoom[token] = appendUnique(out.PerRoom[token], m)
			}
			continue
		}

		flats++
		material, rooms := stripAnnotations(segment)
		for _, m := range splitMaterials(material, table) {
			out.General = appendUnique(out.General, m)
			for _, room := range rooms {
				token, known := lex.Room(room)
				if !known {
					out.Unresolved = append(out.Unresolved, room)
					continue
				}
				out.PerRoom[token] = appendUnique(out.PerRoom[token], m)
			}
		}
	}

	switch {
	case pairs > 0 && flats > 0:
		out.Format = FormatMixed
	case pairs > 0:
		out.Format = FormatRoomByRoom
	default:
		out.Format = FormatFlat
	}
	return out
}

// splitTopLevel splits on commas, Arabic commas, semicolons and newlines
// that are not inside parentheses or brackets.
func splitTopLevel(s string) []string {
	var (
		out     []string
		current strings.Builder
		depth   int
	)
	flush := func() {
		if seg := strings.TrimSpace(current.String()); seg != "" {
			out = append(out, seg)
		}
		current.Reset()
	}
	for _, r := range s {
		switch r {
		case '(', '[', '（':
			depth++
		case ')', ']', '）':
			if depth > 0 {
				depth--
			}
		case ',', '،', ';', '؛', '\n':
			if depth == 0 {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}
	flush()
	return out
}

// splitRoomPair splits "room: material" on the first top-level colon.
func splitRoomPair(segment string) (string, string, bool) {
	depth := 0
	for i, r := range segment {
		switch r {
		case '(', '[', '（':
			depth++
		case ')', ']', '）':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 {
				room := strings.TrimSpace(segment[:i])
				material := strings.TrimSpace(segment[i+1:])
				if room == "" || material == "" {
					return "", "", false
				}
				return room, material, true
			}
		}
	}
	return "", "", false
}

// stripAnnotations removes parenthesized room lists from a flat item.
func stripAnnotations(segment string) (string, []string) {
	var (
		text  strings.Builder
		inner strings.Builder
		rooms []string
		depth int
	)
	for _, r := range segment {
		switch r {
		case '(', '[', '（':
			if depth > 0 {
				inner.WriteRune(r)
			}
			depth++
			continue
		case ')', ']', '）':
			if depth > 0 {
				depth--
				if depth == 0 {
					rooms = append(rooms, splitRooms(inner.String())...)
					inner.Reset()
					continue
				}
			}
		}
		if depth > 0 {
			inner.WriteRune(r)
		} else {
			text.WriteRune(r)
		}
	}
	return strings.TrimSpace(text.String()), rooms
}

func splitRooms(s string) []string {
	var out []string
	for _, part := range roomSeparators.Split(strings.TrimSpace(s), -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitMaterials maps each material named in s to its canonical token, or
// to the lower-cased original text when the table has no match.
func splitMaterials(s string, table *lexicon.Table) []string {
	var out []string
	for _, part := range materialSeparators.Split(strings.TrimSpace(s), -1) {
		part = strings.Join(strings.Fields(part), " ")
		if part == "" {
			continue
		}
		if token, ok := table.Lookup(part); ok {
			out = appendUnique(out, token)
			continue
		}
		out = appendUnique(out, strings.ToLower(part))
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
