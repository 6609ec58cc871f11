package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarhub/backend/internal/domain"
)

func TestExportRISThesisWithDOI(t *testing.T) {
	out := ExportRIS([]*domain.Record{{
		Title:      "Coastal erosion models",
		Authors:    []string{"Ndlovu, T", "Smith, J"},
		Year:       2019,
		Source:     "UCT",
		Type:       domain.TypeThesis,
		Identifier: "10.1234/uct.12345",
		URL:        "http://hdl.handle.net/11427/1",
	}})

	assert.True(t, strings.HasPrefix(out, "TY  - THES\r\n"))
	assert.Contains(t, out, "TI  - Coastal erosion models\r\n")
	assert.Contains(t, out, "AU  - Ndlovu, T\r\n")
	assert.Contains(t, out, "AU  - Smith, J\r\n")
	assert.Contains(t, out, "PY  - 2019\r\n")
	assert.Contains(t, out, "PB  - UCT\r\n")
	assert.Contains(t, out, "UR  - http://hdl.handle.net/11427/1\r\n")
	assert.Contains(t, out, "DO  - 10.1234/uct.12345\r\n")
	assert.True(t, strings.HasSuffix(out, "ER  - \r\n"))
}

func TestExportRISNonDOIOmitsDOLine(t *testing.T) {
	out := ExportRIS([]*domain.Record{{
		Title:      "Estuary sediment survey",
		Type:       domain.TypeArticle,
		Identifier: "11427/99",
	}})

	assert.True(t, strings.HasPrefix(out, "TY  - JOUR\r\n"))
	assert.NotContains(t, out, "DO  - ")
}

func TestExportRISDatasetType(t *testing.T) {
	out := ExportRIS([]*domain.Record{{Title: "Rainfall dataset", Type: domain.TypeResearch}})
	assert.True(t, strings.HasPrefix(out, "TY  - DATA\r\n"))
}

func TestExportRISTruncatesAbstract(t *testing.T) {
	out := ExportRIS([]*domain.Record{{
		Title:       "Long abstract",
		Type:        domain.TypeArticle,
		Description: strings.Repeat("x", 600),
	}})

	lines := strings.Split(out, "\r\n")
	var abstract string
	for _, line := range lines {
		if strings.HasPrefix(line, "AB  - ") {
			abstract = strings.TrimPrefix(line, "AB  - ")
		}
	}
	require.NotEmpty(t, abstract)
	assert.Len(t, abstract, 500)
}

func TestExportRISTruncatesAbstractOnRuneBoundary(t *testing.T) {
	// A multi-byte character straddles the cut-off point.
	out := ExportRIS([]*domain.Record{{
		Title:       "Accented abstract",
		Type:        domain.TypeArticle,
		Description: strings.Repeat("x", 499) + "é" + strings.Repeat("y", 100),
	}})

	lines := strings.Split(out, "\r\n")
	var abstract string
	for _, line := range lines {
		if strings.HasPrefix(line, "AB  - ") {
			abstract = strings.TrimPrefix(line, "AB  - ")
		}
	}
	require.NotEmpty(t, abstract)
	assert.True(t, utf8.ValidString(abstract))
	assert.Equal(t, 500, utf8.RuneCountInString(abstract))
	assert.True(t, strings.HasSuffix(abstract, "é"))
}

func TestExportRISSkipsPlaceholderURL(t *testing.T) {
	out := ExportRIS([]*domain.Record{{Title: "No link", Type: domain.TypeArticle, URL: "#"}})
	assert.NotContains(t, out, "UR  - ")
}

func TestExportRISMultipleBlocks(t *testing.T) {
	out := ExportRIS([]*domain.Record{
		{Title: "First", Type: domain.TypeThesis},
		{Title: "Second", Type: domain.TypeResearch},
	})
	assert.Equal(t, 2, strings.Count(out, "ER  - \r\n"))
	assert.Equal(t, 1, strings.Count(out, "TY  - THES"))
	assert.Equal(t, 1, strings.Count(out, "TY  - DATA"))
}

func TestExportRISEmpty(t *testing.T) {
	assert.Equal(t, "", ExportRIS(nil))
}
