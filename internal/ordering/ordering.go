// Package ordering derives a deterministic display order from file and
// folder names.
//
// A name is assigned a tier and a numeric value by the first rule that
// matches:
//
//	tier 0  leading number      "1_intro", "[01] Welcome", "(2) Setup", "1a"
//	tier 0  word + number       "Chapter 10", "Módulo 1 - Intro"
//	tier 1  trailing number     "intro_1.mp4", "lesson - 01"
//	tier 2  dash prefix         "-old_notes.pdf" (value = creation time)
//	tier 3  anything else       value 0
//
// Keys compare by tier, then value, then case-insensitive name.
package ordering

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tier is the priority bucket of a Key. Lower sorts first.
type Tier int

const (
	TierLeading  Tier = 0
	TierTrailing Tier = 1
	TierDash     Tier = 2
	TierNone     Tier = 3
)

// Key is the comparable ordering key of one entry.
type Key struct {
	Tier  Tier   `json:"tier"`
	Value int64  `json:"value"`
	Name  string `json:"name"`
}

var (
	leadingPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+)[\s_\-.)\]]+(.*)$`), // "1_intro", "01 - intro", "1.intro"
		regexp.MustCompile(`^\[(\d+)\][\s_\-.]*(.*)$`), // "[1] intro"
		regexp.MustCompile(`^\((\d+)\)[\s_\-.]*(.*)$`), // "(1) intro"
		regexp.MustCompile(`^(\d+)(\p{L}.*)$`),         // "1a", "01intro"
		regexp.MustCompile(`^(\d+)()$`),                // "10"
	}

	// A single word, whitespace, then a number that ends at a separator.
	wordNumberPattern = regexp.MustCompile(`^\p{L}+\.?\s+(\d+)(?:[\s_\-.:)\]]+(.*))?$`)

	// A separator-anchored number at the end, optionally before a short extension.
	trailingPattern = regexp.MustCompile(`^(.+?)[\s_\-]+(\d+)(\.\p{L}[\p{L}\d]{0,4})?$`)
)

// match is the result of the first matching numeric rule.
type match struct {
	tier  Tier
	value int64
	rest  string // name with the ordering token removed
}

// parse applies the numeric rules in order. A digit run that does not fit
// in an int64 is a malformed token: that rule is treated as not matching
// and evaluation continues, so the worst case is tier 3. Names are matched
// in NFC so decomposed accents still count as letters.
func parse(name string) (match, bool) {
	name = norm.NFC.String(name)
	for _, re := range leadingPatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			if v, ok := parseNumber(m[1]); ok {
				return match{tier: TierLeading, value: v, rest: m[2]}, true
			}
			break
		}
	}

	if m := wordNumberPattern.FindStringSubmatch(name); m != nil {
		if v, ok := parseNumber(m[1]); ok {
			return match{tier: TierLeading, value: v, rest: m[2]}, true
		}
	}

	if m := trailingPattern.FindStringSubmatch(name); m != nil {
		if v, ok := parseNumber(m[2]); ok {
			return match{tier: TierTrailing, value: v, rest: m[1] + m[3]}, true
		}
	}

	return match{}, false
}

func parseNumber(digits string) (int64, bool) {
	v, err := strconv.ParseInt(digits, 10, 64)
	return v, err == nil
}

// IsDashPrefixed reports whether name is demoted to the dash tier. Callers
// use it to skip the creation-time lookup for every other name.
func IsDashPrefixed(name string) bool {
	return strings.HasPrefix(name, "-")
}

// Extract computes the ordering key of name. created is only consulted for
// dash-prefixed names; a zero time yields value 0.
func Extract(name string, created time.Time) Key {
	if IsDashPrefixed(name) {
		var v int64
		if !created.IsZero() {
			v = created.UnixNano()
		}
		return Key{Tier: TierDash, Value: v, Name: name}
	}
	if m, ok := parse(name); ok {
		return Key{Tier: m.tier, Value: m.value, Name: name}
	}
	return Key{Tier: TierNone, Name: name}
}

// Compare orders keys by tier, value, then case-folded name. Names that fold
// equal fall back to a byte comparison so the order stays total.
func Compare(a, b Key) int {
	if c := cmp.Compare(a.Tier, b.Tier); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if c := strings.Compare(foldName(a.Name), foldName(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// Less reports whether a sorts before b.
func Less(a, b Key) bool {
	return Compare(a, b) < 0
}

// foldName builds a Caser per call; Casers are stateful and must not be
// shared between goroutines.
func foldName(name string) string {
	return cases.Fold().String(norm.NFC.String(name))
}

// Sort stable-sorts items by the key returned from keyOf.
func Sort[T any](items []T, keyOf func(T) Key) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(keyOf(a), keyOf(b))
	})
}

// CleanTitle turns a file or folder name into a display title. Files lose
// their extension. Names with a numeric ordering token lose that token;
// every name is trimmed of " _-." and gets an upper-case first letter.
func CleanTitle(name string, isFile bool) string {
	base := name
	if isFile {
		if i := strings.LastIndexByte(base, '.'); i > 0 {
			base = base[:i]
		}
	}

	title := base
	if !IsDashPrefixed(base) {
		if m, ok := parse(base); ok {
			title = m.rest
		}
	}
	title = strings.Trim(title, " _-.")
	if title == "" {
		title = strings.Trim(base, " _-.")
	}
	if title == "" {
		return name
	}

	r, size := utf8.DecodeRuneInString(title)
	if unicode.IsLower(r) {
		title = string(unicode.ToUpper(r)) + title[size:]
	}
	return title
}
