// Package oaixml parses OAI-PMH ListRecords responses carrying Dublin
// Core metadata. Extraction is deliberately tolerant: repositories serve
// truncated pages, qualified tag variants, and HTML error bodies, so a
// missing or malformed tag yields absence rather than an error.
package oaixml

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Publication types shared with the domain model.
const (
	TypeThesis  = "Thesis/Dissertation"
	TypeArticle = "Journal Article"
	TypeOther   = "Other"
)

// Identifier type tags.
const (
	IDTypeDOI     = "DOI"
	IDTypeHandle  = "Handle"
	IDTypeGeneric = "ID"
)

// DryadSource is substituted when a record's DOI carries the Dryad
// registry prefix, regardless of which repository served the record.
// Dryad datasets are routinely mirrored into institutional repositories;
// the identifier is a more reliable provenance signal than the endpoint.
const DryadSource = "Dryad Digital Repository"

var (
	reRecordBlock  = regexp.MustCompile(`(?s)<record[\s>].*?</record>`)
	reDCBlock      = regexp.MustCompile(`(?s)<oai_dc:dc[\s>].*?</oai_dc:dc>`)
	reResumption   = regexp.MustCompile(`(?s)<resumptionToken[^>]*>(.*?)</resumptionToken>`)
	reOAIError     = regexp.MustCompile(`<error[^>]*code="([^"]+)"`)
	reYear         = regexp.MustCompile(`(19|20)\d{2}`)
	reThesis       = regexp.MustCompile(`(?i)thesis|dissertation`)
	reArticle      = regexp.MustCompile(`(?i)article`)
	reHTMLTag      = regexp.MustCompile(`<[^>]+>`)
	reDryadDOI     = regexp.MustCompile(`^10\.5061/`)
	reDeepFileURL  = regexp.MustCompile(`^https?://[^/\s]+/\S*\.[A-Za-z0-9]{1,5}$`)
	reWellFormed   = regexp.MustCompile(`^https?://[A-Za-z0-9.-]+\.[A-Za-z]{2,}(/\S*)?$`)
	reHostWithPath = regexp.MustCompile(`^https?://[^/\s]+/\S+`)
	reURLShaped    = regexp.MustCompile(`^https?://`)
)

var entityDecoder = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// ParsedRecord is the normalized view of one <record> block. The harvester
// assigns the persisted id and category.
type ParsedRecord struct {
	Title          string
	Authors        []string
	Description    string
	Keywords       []string
	Year           int
	Source         string
	Type           string
	TypeTerms      []string
	Identifier     string
	IdentifierType string
	URL            string
}

// ListResult is one parsed ListRecords page.
type ListResult struct {
	Records []*ParsedRecord
	// Next is the resumption token, or "" when the feed is exhausted.
	Next string
	// ErrorCode carries an OAI <error code="..."> value such as
	// noRecordsMatch; it is a pagination signal, not a failure.
	ErrorCode string
}

// Extract returns every value of the given tag within the block, in
// document order. A first pass matches the exact tag; a second pass
// accepts qualified Dublin Core variants (dc:title.alternative is treated
// as part of the dc:title family). Values are entity-decoded and trimmed;
// empties are dropped.
func Extract(block, tag string) []string {
	quoted := regexp.QuoteMeta(tag)
	exact := regexp.MustCompile(`(?s)<` + quoted + `(?:\s[^>]*)?>(.*?)</` + quoted + `>`)
	qualified := regexp.MustCompile(`(?s)<` + quoted + `\.[\w.]+(?:\s[^>]*)?>(.*?)</` + quoted + `\.[\w.]+>`)

	var out []string
	for _, re := range []*regexp.Regexp{exact, qualified} {
		for _, m := range re.FindAllStringSubmatch(block, -1) {
			v := strings.TrimSpace(entityDecoder.Replace(m[1]))
			if v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// BestURL resolves the most useful landing URL from a record block's
// identifier and relation fields. Deep links to the actual item win over
// bare institutional homepages.
func BestURL(block string) string {
	candidates := Extract(block, "dc:identifier")
	// Some repositories spell the namespace separator with a dot.
	candidates = append(candidates, Extract(block, "dc.identifier")...)
	candidates = append(candidates, Extract(block, "dc:relation")...)
	if len(candidates) == 0 {
		return ""
	}
	for _, re := range []*regexp.Regexp{reDeepFileURL, reWellFormed, reHostWithPath} {
		for _, c := range candidates {
			if re.MatchString(c) {
				return c
			}
		}
	}
	return candidates[0]
}

// BestID classifies the first URL-shaped candidate as a Handle, a DOI, or
// a generic ID. All-empty when no candidate is URL-shaped.
func BestID(candidates []string) (identifier, identifierType, link string) {
	for _, c := range candidates {
		if !reURLShaped.MatchString(c) {
			continue
		}
		id, idType := ClassifyURL(c)
		return id, idType, c
	}
	return "", "", ""
}

// ClassifyURL derives an identifier and its type tag from a resolved URL.
// Host-less values are usable only when they point at a file, in which
// case the file name serves as the identifier.
func ClassifyURL(raw string) (identifier, identifierType string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		if trimmed := strings.Trim(raw, "/"); strings.HasSuffix(strings.ToLower(trimmed), ".pdf") {
			segs := strings.Split(trimmed, "/")
			return segs[len(segs)-1], IDTypeGeneric
		}
		return "", ""
	}
	path := strings.Trim(u.Path, "/")
	host := strings.ToLower(u.Host)
	switch {
	case host == "doi.org" || host == "dx.doi.org":
		return path, IDTypeDOI
	case host == "hdl.handle.net":
		return path, IDTypeHandle
	default:
		if path == "" {
			return "", ""
		}
		segs := strings.Split(path, "/")
		return segs[len(segs)-1], IDTypeGeneric
	}
}

// ParseRecord builds one normalized record from one <record> block.
// source is the display name of the repository being harvested; it is
// overridden when the resolved identifier proves a different origin.
func ParseRecord(block, source string) *ParsedRecord {
	rec := &ParsedRecord{Source: source}

	titles := Extract(block, "dc:title")
	if len(titles) > 0 {
		rec.Title = titles[0]
	} else {
		rec.Title = "Untitled"
	}

	rec.Authors = Extract(block, "dc:creator")
	if descs := Extract(block, "dc:description"); len(descs) > 0 {
		rec.Description = StripHTML(descs[0])
	}
	rec.Keywords = Extract(block, "dc:subject")

	rec.TypeTerms = Extract(block, "dc:type")
	rec.Type = ClassifyType(rec.TypeTerms)

	if dates := Extract(block, "dc:date"); len(dates) > 0 {
		if m := reYear.FindString(strings.Join(dates, " ")); m != "" {
			rec.Year, _ = strconv.Atoi(m)
		}
	}

	rec.URL = BestURL(block)
	if rec.URL != "" {
		rec.Identifier, rec.IdentifierType = ClassifyURL(rec.URL)
	}

	if reDryadDOI.MatchString(rec.Identifier) {
		rec.Source = DryadSource
	}
	return rec
}

// ClassifyType maps a repository's type vocabulary onto the closed
// publication-type set via case-insensitive substring match.
func ClassifyType(terms []string) string {
	joined := strings.Join(terms, " ")
	switch {
	case reThesis.MatchString(joined):
		return TypeThesis
	case reArticle.MatchString(joined):
		return TypeArticle
	default:
		return TypeOther
	}
}

// ParseList parses one ListRecords page. Malformed, truncated, or
// error-bearing XML is tolerated: the result simply carries fewer (or no)
// records and no token. When the document has no <record> or <OAI-PMH>
// markers at all, raw <oai_dc:dc> blocks are parsed instead and the feed
// is treated as non-paginated.
func ParseList(xml, source string) *ListResult {
	res := &ListResult{}
	if m := reOAIError.FindStringSubmatch(xml); m != nil {
		res.ErrorCode = m[1]
	}

	blocks := reRecordBlock.FindAllString(xml, -1)
	if len(blocks) == 0 && !strings.Contains(xml, "<record") && !strings.Contains(xml, "<OAI-PMH") {
		blocks = reDCBlock.FindAllString(xml, -1)
	} else if m := reResumption.FindStringSubmatch(xml); m != nil {
		res.Next = strings.TrimSpace(m[1])
	}

	for _, block := range blocks {
		rec := ParseRecord(block, source)
		if rec.Title == "" || rec.Title == "Untitled" {
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// StripHTML removes markup tags and decodes entities, leaving plain text.
func StripHTML(s string) string {
	return strings.TrimSpace(entityDecoder.Replace(reHTMLTag.ReplaceAllString(s, " ")))
}

// ListRecordsURL builds a ListRecords request URL. When a resumption token
// is present only verb and token are sent, per the protocol.
func ListRecordsURL(endpoint, token string) string {
	if token != "" {
		return fmt.Sprintf("%s?verb=ListRecords&resumptionToken=%s", endpoint, url.QueryEscape(token))
	}
	return endpoint + "?verb=ListRecords&metadataPrefix=oai_dc"
}
