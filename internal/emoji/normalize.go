package emoji

import (
	"strconv"
	"strings"
)

const (
	keySeparator       = "-"
	variationSelector  = "fe0f"
	minCodepointDigits = 4
)

// Key derives the lookup key for text: each unicode scalar value rendered as
// lowercase hex, left-padded to four digits, joined with hyphens.
//
//	Key("👍")  == "1f44d"
//	Key("9")   == "0039"
//	Key("👍🏽") == "1f44d-1f3fd"
func Key(text string) string {
	var b strings.Builder
	first := true
	for _, r := range text {
		if !first {
			b.WriteString(keySeparator)
		}
		first = false
		hex := strconv.FormatInt(int64(r), 16)
		for i := len(hex); i < minCodepointDigits; i++ {
			b.WriteByte('0')
		}
		b.WriteString(hex)
	}
	return b.String()
}
