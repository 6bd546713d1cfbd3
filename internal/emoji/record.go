package emoji

import "strings"

// Record is one flattened entry of the emoji dataset. Skin tone variations are
// flattened into records of their own, so a single base emoji may produce
// several records sharing Name and Category.
type Record struct {
	Unified      string   `json:"unified"`
	NonQualified string   `json:"non_qualified,omitempty"`
	Name         string   `json:"name"`
	Image        string   `json:"image"`
	ShortName    string   `json:"short_name,omitempty"`
	ShortNames   []string `json:"short_names,omitempty"`
	Category     string   `json:"category,omitempty"`
	Subcategory  string   `json:"subcategory,omitempty"`
	SortOrder    int      `json:"sort_order,omitempty"`

	// SkinTone is the modifier key this record was flattened from, empty for base records.
	SkinTone string `json:"skin_tone,omitempty"`
}

// Slug returns the name lowercased with spaces replaced by hyphens.
func (r Record) Slug() string {
	return strings.ReplaceAll(strings.ToLower(r.Name), " ", "-")
}

// IsVariation reports whether r came from a base entry's skin_variations map.
func (r Record) IsVariation() bool {
	return r.SkinTone != ""
}
