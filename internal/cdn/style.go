package cdn

import (
	"errors"
	"fmt"
	"strings"
)

// Style is the platform whose artwork is served.
type Style string

const (
	StyleApple    Style = "apple"
	StyleGoogle   Style = "google"
	StyleFacebook Style = "facebook"
	StyleTwitter  Style = "twitter"

	DefaultStyle = StyleApple
)

// Styles lists every supported style in the order they are advertised.
var Styles = []Style{StyleApple, StyleGoogle, StyleFacebook, StyleTwitter}

var styleFolders = map[Style]string{
	StyleApple:    "img-apple-160",
	StyleGoogle:   "img-google-136",
	StyleFacebook: "img-facebook-96",
	StyleTwitter:  "img-twitter-72",
}

// ErrInvalidStyle is returned by ParseStyle for names outside Styles.
var ErrInvalidStyle = errors.New("invalid style")

// ParseStyle accepts exactly the lowercase style names. The empty string is invalid.
func ParseStyle(name string) (Style, error) {
	s := Style(name)
	if _, ok := styleFolders[s]; !ok {
		return "", fmt.Errorf("%w %q", ErrInvalidStyle, name)
	}
	return s, nil
}

// Folder returns the CDN directory holding images for s.
func (s Style) Folder() string {
	return styleFolders[s]
}

func (s Style) String() string { return string(s) }

// StyleList renders Styles as "apple, google, facebook, twitter".
func StyleList() string {
	names := make([]string, len(Styles))
	for i, s := range Styles {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
