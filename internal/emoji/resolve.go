package emoji

import (
	"regexp"
	"strings"

	kemoji "github.com/kyokomi/emoji/v2"
)

// MatchKind tells how a lookup was satisfied.
type MatchKind string

const (
	MatchDirect     MatchKind = "direct"
	MatchCodepoints MatchKind = "codepoints"
	MatchAlias      MatchKind = "alias"
)

// codepointsPattern matches text spelled as a unified code, e.g. "1f44d-1f3fd".
var codepointsPattern = regexp.MustCompile(`^[0-9a-fA-F]{4,6}(-[0-9a-fA-F]{4,6})*$`)

// Resolve looks text up the way the HTTP endpoint does. Text is the decoded
// path segment. The four Find rules always run first against the derived key;
// only when they miss is text tried as a spelled-out unified code, then as a
// :shortcode:.
func (t *Table) Resolve(text string) (Record, MatchKind, error) {
	if rec, ok := t.Find(Key(text), text); ok {
		return rec, MatchDirect, nil
	}
	if codepointsPattern.MatchString(text) {
		if rec, ok := t.Find(text, text); ok {
			return rec, MatchCodepoints, nil
		}
	}
	if expanded, ok := ExpandShortcode(text); ok {
		if rec, ok := t.Find(Key(expanded), expanded); ok {
			return rec, MatchAlias, nil
		}
	}
	return Record{}, "", ErrNotFound
}

// ExpandShortcode converts ":alias:" into the emoji characters it names.
func ExpandShortcode(text string) (string, bool) {
	if len(text) < 3 || !strings.HasPrefix(text, ":") || !strings.HasSuffix(text, ":") {
		return "", false
	}
	code, ok := kemoji.CodeMap()[strings.ToLower(text)]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(code), true
}
