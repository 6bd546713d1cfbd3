package emoji

import (
	"errors"
	"math/rand"
	"strings"
)

var (
	// ErrNotFound is returned when no record matches the lookup text.
	ErrNotFound = errors.New("emoji not found")
	// ErrEmptyDataset is returned when a dataset flattens to zero records.
	ErrEmptyDataset = errors.New("emoji dataset is empty")
)

// Table is the read-only, flattened emoji dataset. It is safe for concurrent use
// because nothing mutates it after NewTable returns.
type Table struct {
	records []Record
	unified []string // lowercased Unified, parallel to records
	slugs   []string // Record.Slug(), parallel to records
	bases   int
}

// NewTable indexes records in the given order. The order is significant: when
// several records share a key the earliest one wins.
func NewTable(records []Record) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}
	t := &Table{
		records: records,
		unified: make([]string, len(records)),
		slugs:   make([]string, len(records)),
	}
	for i, r := range records {
		t.unified[i] = strings.ToLower(r.Unified)
		t.slugs[i] = r.Slug()
		if !r.IsVariation() {
			t.bases++
		}
	}
	return t, nil
}

// Len returns the number of flattened records.
func (t *Table) Len() int { return len(t.records) }

// Bases returns the number of records that are not skin variations.
func (t *Table) Bases() int { return t.bases }

// Records returns a copy of the flattened record sequence.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Find returns the first record, in flattened order, whose unified code equals
// key, equals key without a trailing -fe0f, equals key with -fe0f appended, or
// whose slug equals the lowercased text. Records without a name never match by slug.
func (t *Table) Find(key, text string) (Record, bool) {
	key = strings.ToLower(key)
	stripped := strings.TrimSuffix(key, keySeparator+variationSelector)
	qualified := key + keySeparator + variationSelector
	slug := strings.ToLower(text)

	for i, u := range t.unified {
		if u == key || u == stripped || u == qualified || (t.slugs[i] != "" && t.slugs[i] == slug) {
			return t.records[i], true
		}
	}
	return Record{}, false
}

// Random returns a uniformly chosen record.
func (t *Table) Random() Record {
	return t.records[rand.Intn(len(t.records))]
}
