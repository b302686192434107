package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidGroupID is returned when a group ID contains characters outside
// the allowed alphanumeric, dash and underscore set.
var ErrInvalidGroupID = errors.New("group ID contains invalid characters")

var groupIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// GenerateUUID returns a new time-ordered (v7) UUID string, falling back to
// random v4 if the clock source fails.
func GenerateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ValidateGroupID rejects group IDs that could break store query syntax.
func ValidateGroupID(groupID string) error {
	if groupID == "" || groupIDPattern.MatchString(groupID) {
		return nil
	}
	return ErrInvalidGroupID
}

// luceneSpecial lists the characters Lucene-backed fulltext indexes treat
// as operators.
var luceneSpecial = []string{
	"+", "-", "&&", "||", "!", "(", ")", "{", "}", "[", "]",
	"^", `"`, "~", "*", "?", ":", "\\", "/",
}

// SanitizeFulltextQuery escapes operator characters so user text is safe to
// pass to a fulltext index.
func SanitizeFulltextQuery(query string) string {
	sanitized := query
	for _, ch := range luceneSpecial {
		sanitized = strings.ReplaceAll(sanitized, ch, "\\"+ch)
	}
	return strings.TrimSpace(sanitized)
}

// Batch splits items into chunks of at most size elements, preserving order.
func Batch[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// Tokenize lowercases text and splits it into word tokens for fulltext
// scoring.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return fields
}

// WordOverlap returns the Jaccard overlap of the token sets of a and b.
func WordOverlap(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, tok := range ta {
		set[tok] = true
	}
	union := make(map[string]bool, len(ta)+len(tb))
	for _, tok := range ta {
		union[tok] = true
	}
	shared := 0
	seen := make(map[string]bool, len(tb))
	for _, tok := range tb {
		union[tok] = true
		if set[tok] && !seen[tok] {
			shared++
			seen[tok] = true
		}
	}
	return float64(shared) / float64(len(union))
}
