package cdn

import "strings"

// DefaultBaseURL is the jsDelivr mirror of the iamcal/emoji-data repository.
const DefaultBaseURL = "https://cdn.jsdelivr.net/gh/iamcal/emoji-data"

// URLBuilder builds image URLs of the form {base}/{folder}/{image}.
type URLBuilder struct {
	base string
}

// NewURLBuilder returns a builder for base. An empty base selects DefaultBaseURL.
func NewURLBuilder(base string) *URLBuilder {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &URLBuilder{base: base}
}

// URL returns the address of image rendered in style.
func (b *URLBuilder) URL(style Style, image string) string {
	return b.base + "/" + style.Folder() + "/" + image
}
