package oaixml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecord = `
<record>
  <header><identifier>oai:open.uct.ac.za:11427/12345</identifier></header>
  <metadata>
    <oai_dc:dc>
      <dc:title>Coastal erosion in the Western Cape</dc:title>
      <dc:creator>Ndlovu, Thandi</dc:creator>
      <dc:creator>Smith, James</dc:creator>
      <dc:description>&lt;p&gt;A study of &amp;quot;coastal&amp;quot; processes.&lt;/p&gt;</dc:description>
      <dc:subject>erosion</dc:subject>
      <dc:subject>climate</dc:subject>
      <dc:type>Thesis / Dissertation</dc:type>
      <dc:date>2019-04-11</dc:date>
      <dc:identifier>http://hdl.handle.net/11427/12345</dc:identifier>
      <dc:identifier>https://open.uct.ac.za</dc:identifier>
    </oai_dc:dc>
  </metadata>
</record>`

func TestExtractExactAndQualified(t *testing.T) {
	block := `<dc:title>Main title</dc:title><dc:title.alternative>Alt title</dc:title.alternative>`
	got := Extract(block, "dc:title")
	assert.Equal(t, []string{"Main title", "Alt title"}, got)
}

func TestExtractDecodesEntities(t *testing.T) {
	block := `<dc:title>Salt &amp; light &lt;notes&gt;</dc:title>`
	got := Extract(block, "dc:title")
	require.Len(t, got, 1)
	assert.Equal(t, "Salt & light <notes>", got[0])
}

func TestExtractMissingTag(t *testing.T) {
	assert.Empty(t, Extract(sampleRecord, "dc:publisher"))
}

func TestParseRecordFields(t *testing.T) {
	rec := ParseRecord(sampleRecord, "University of Cape Town (OpenUCT)")

	assert.Equal(t, "Coastal erosion in the Western Cape", rec.Title)
	assert.Equal(t, []string{"Ndlovu, Thandi", "Smith, James"}, rec.Authors)
	assert.Contains(t, rec.Description, `A study of "coastal" processes.`)
	assert.NotContains(t, rec.Description, "<p>")
	assert.Equal(t, []string{"erosion", "climate"}, rec.Keywords)
	assert.Equal(t, TypeThesis, rec.Type)
	assert.Equal(t, 2019, rec.Year)
	assert.Equal(t, "http://hdl.handle.net/11427/12345", rec.URL)
	assert.Equal(t, "11427/12345", rec.Identifier)
	assert.Equal(t, IDTypeHandle, rec.IdentifierType)
}

func TestParseRecordUntitledFallback(t *testing.T) {
	rec := ParseRecord(`<record><dc:creator>Anon</dc:creator></record>`, "X")
	assert.Equal(t, "Untitled", rec.Title)
}

func TestBestURLPriority(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  string
	}{
		{
			name: "deep file link wins over handle",
			block: `<dc:identifier>http://hdl.handle.net/11427/99</dc:identifier>
				<dc:identifier>https://open.uct.ac.za/bitstream/11427/99/thesis.pdf</dc:identifier>`,
			want: "https://open.uct.ac.za/bitstream/11427/99/thesis.pdf",
		},
		{
			name:  "well-formed host when no deep link",
			block: `<dc:identifier>https://example.ac.za/item/42</dc:identifier>`,
			want:  "https://example.ac.za/item/42",
		},
		{
			name:  "dot-spelled namespace accepted",
			block: `<dc.identifier>https://repo.example.org/handle/1/2</dc.identifier>`,
			want:  "https://repo.example.org/handle/1/2",
		},
		{
			name:  "relation considered",
			block: `<dc:identifier>ISSN 1234-5678</dc:identifier><dc:relation>https://doi.org/10.1000/xyz</dc:relation>`,
			want:  "https://doi.org/10.1000/xyz",
		},
		{
			name:  "raw first candidate when nothing is URL-shaped",
			block: `<dc:identifier>ISSN 1234-5678</dc:identifier>`,
			want:  "ISSN 1234-5678",
		},
		{
			name:  "no candidates",
			block: `<dc:title>only a title</dc:title>`,
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BestURL(tt.block))
		})
	}
}

func TestClassifyURL(t *testing.T) {
	tests := []struct {
		raw    string
		id     string
		idType string
	}{
		{"https://doi.org/10.5061/dryad.abc123", "10.5061/dryad.abc123", IDTypeDOI},
		{"http://dx.doi.org/10.1000/xyz", "10.1000/xyz", IDTypeDOI},
		{"http://hdl.handle.net/11427/12345", "11427/12345", IDTypeHandle},
		{"https://repo.example.org/items/abc-def", "abc-def", IDTypeGeneric},
		{"https://repo.example.org/", "", ""},
		// Host-less values resolve only when they name a file.
		{"bitstream/11427/99/thesis.pdf", "thesis.pdf", IDTypeGeneric},
		{"thesis.PDF", "thesis.PDF", IDTypeGeneric},
		{"bitstream/11427/99", "", ""},
	}
	for _, tt := range tests {
		id, idType := ClassifyURL(tt.raw)
		assert.Equal(t, tt.id, id, tt.raw)
		assert.Equal(t, tt.idType, idType, tt.raw)
	}
}

func TestDryadDOIOverridesSource(t *testing.T) {
	block := `<record><dc:title>Dataset mirrored into UCT</dc:title>
		<dc:identifier>https://doi.org/10.5061/dryad.xy12</dc:identifier></record>`
	rec := ParseRecord(block, "University of Cape Town (OpenUCT)")
	assert.Equal(t, DryadSource, rec.Source)
}

func TestClassifyType(t *testing.T) {
	assert.Equal(t, TypeThesis, ClassifyType([]string{"Doctoral Thesis"}))
	assert.Equal(t, TypeThesis, ClassifyType([]string{"dissertation"}))
	assert.Equal(t, TypeArticle, ClassifyType([]string{"Journal Article", "peer reviewed"}))
	assert.Equal(t, TypeOther, ClassifyType([]string{"Dataset"}))
	assert.Equal(t, TypeOther, ClassifyType(nil))
}

func TestParseListEmptyAndHTMLInput(t *testing.T) {
	for _, input := range []string{"", "<html>error</html>"} {
		res := ParseList(input, "X")
		assert.Empty(t, res.Records, input)
		assert.Empty(t, res.Next, input)
	}
}

func TestParseListResumptionToken(t *testing.T) {
	xml := `<OAI-PMH>` + sampleRecord + `
		<resumptionToken completeListSize="120">oai_dc/100/token</resumptionToken></OAI-PMH>`
	res := ParseList(xml, "UCT")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "oai_dc/100/token", res.Next)
}

func TestParseListNoRecordsMatch(t *testing.T) {
	xml := `<OAI-PMH><error code="noRecordsMatch">no records</error></OAI-PMH>`
	res := ParseList(xml, "UCT")
	assert.Empty(t, res.Records)
	assert.Equal(t, "noRecordsMatch", res.ErrorCode)
}

func TestParseListBareDCFallback(t *testing.T) {
	// No <record> or <OAI-PMH> wrapper at all; raw dc blocks still parse,
	// and the feed is treated as non-paginated even if a stray token
	// string appears.
	xml := `<oai_dc:dc><dc:title>Bare block</dc:title>
		<dc:identifier>https://repo.example.org/items/1</dc:identifier></oai_dc:dc>`
	res := ParseList(xml, "X")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Bare block", res.Records[0].Title)
	assert.Empty(t, res.Next)
}

func TestParseListDropsUntitled(t *testing.T) {
	xml := `<OAI-PMH><record><dc:creator>Anon</dc:creator></record>` + sampleRecord + `</OAI-PMH>`
	res := ParseList(xml, "UCT")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Coastal erosion in the Western Cape", res.Records[0].Title)
}

func TestListRecordsURL(t *testing.T) {
	assert.Equal(t,
		"https://x.ac.za/oai/request?verb=ListRecords&metadataPrefix=oai_dc",
		ListRecordsURL("https://x.ac.za/oai/request", ""))
	assert.Equal(t,
		"https://x.ac.za/oai/request?verb=ListRecords&resumptionToken=a%2Fb",
		ListRecordsURL("https://x.ac.za/oai/request", "a/b"))
}
