package harvester

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarhub/backend/pkg/oaixml"
)

var reDateYear = regexp.MustCompile(`(19|20)\d{2}`)

// yearFrom pulls a four-digit year out of a date string of any shape
// ("2021-03-04", "2021", "March 2021"). Zero when none is present.
func yearFrom(date string) int {
	m := reDateYear.FindString(date)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

// stripMarkup removes HTML tags and collapses whitespace in free-text
// fields that some APIs serve as rich text.
func stripMarkup(s string) string {
	return strings.TrimSpace(oaixml.StripHTML(s))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
