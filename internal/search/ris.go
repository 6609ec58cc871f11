package search

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/scholarhub/backend/internal/domain"
)

var (
	reRISThesis = regexp.MustCompile(`(?i)thesis|dissertation`)
	reRISData   = regexp.MustCompile(`(?i)data`)
	reDOIShape  = regexp.MustCompile(`^10\.\d{4,9}/`)
)

const risAbstractMax = 500

// ExportRIS renders records as an RIS bibliography: one TY..ER block per
// record, CRLF line endings, trailing CRLF after the final ER line.
func ExportRIS(records []*domain.Record) string {
	var b strings.Builder
	for _, r := range records {
		writeRISLine(&b, "TY", risType(r.Type))
		writeRISLine(&b, "TI", r.Title)
		for _, a := range r.Authors {
			writeRISLine(&b, "AU", a)
		}
		if r.Year != 0 {
			writeRISLine(&b, "PY", strconv.Itoa(r.Year))
		}
		if r.Source != "" {
			writeRISLine(&b, "PB", r.Source)
		}
		if r.Description != "" {
			abstract := r.Description
			// Truncate by runes so a multi-byte character is never split.
			if runes := []rune(abstract); len(runes) > risAbstractMax {
				abstract = string(runes[:risAbstractMax])
			}
			writeRISLine(&b, "AB", abstract)
		}
		if r.HasURL() {
			writeRISLine(&b, "UR", r.URL)
		}
		if reDOIShape.MatchString(r.Identifier) {
			writeRISLine(&b, "DO", r.Identifier)
		}
		b.WriteString("ER  - \r\n")
	}
	return b.String()
}

// risType maps a record's publication type onto an RIS entry type.
func risType(recordType string) string {
	switch {
	case reRISThesis.MatchString(recordType):
		return "THES"
	case reRISData.MatchString(recordType):
		return "DATA"
	default:
		return "JOUR"
	}
}

func writeRISLine(b *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	b.WriteString(tag)
	b.WriteString("  - ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
