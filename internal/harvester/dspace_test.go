package harvester

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarhub/backend/internal/config"
	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/pkg/oaixml"
)

func oaiRecord(title, recType, handle string) string {
	return fmt.Sprintf(`<record><metadata><oai_dc:dc>
		<dc:title>%s</dc:title>
		<dc:creator>Author, A</dc:creator>
		<dc:type>%s</dc:type>
		<dc:date>2020-01-01</dc:date>
		<dc:identifier>http://hdl.handle.net/%s</dc:identifier>
	</oai_dc:dc></metadata></record>`, title, recType, handle)
}

// newOAIServer serves two ListRecords pages linked by a resumption token.
func newOAIServer(t *testing.T, page1Records, page2Records []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("resumptionToken")
		w.Header().Set("Content-Type", "text/xml")
		if token == "" {
			fmt.Fprintf(w, `<OAI-PMH><ListRecords>%s<resumptionToken>page2</resumptionToken></ListRecords></OAI-PMH>`,
				join(page1Records))
			return
		}
		fmt.Fprintf(w, `<OAI-PMH><ListRecords>%s</ListRecords></OAI-PMH>`, join(page2Records))
	}))
}

func join(records []string) string {
	out := ""
	for _, r := range records {
		out += r
	}
	return out
}

func TestHarvestDSpaceRepoPaginates(t *testing.T) {
	srv := newOAIServer(t,
		[]string{
			oaiRecord("Thesis one", "Doctoral Thesis", "1/1"),
			oaiRecord("Article one", "Journal Article", "1/2"),
		},
		[]string{
			oaiRecord("Thesis two", "Masters Dissertation", "1/3"),
		})
	defer srv.Close()

	svc, _, _ := newTestService(t, testHarvestConfig())
	repo := config.OAIRepo{ID: "uct", Name: "University of Cape Town (OpenUCT)", Endpoint: srv.URL}

	res, err := svc.HarvestDSpaceRepo(context.Background(), repo, 40)
	require.NoError(t, err)
	require.Len(t, res.Theses, 2)
	require.Len(t, res.Articles, 1)
	assert.Equal(t, "Thesis one", res.Theses[0].Title)
	assert.Equal(t, "Thesis two", res.Theses[1].Title)
	assert.Equal(t, domain.CategoryThesis, res.Theses[0].Category)
	assert.Equal(t, domain.TypeThesis, res.Theses[0].Type)
	assert.Equal(t, "University of Cape Town (OpenUCT)", res.Theses[0].Source)
	assert.Equal(t, "1/1", res.Theses[0].Identifier)
	assert.Equal(t, domain.IdentifierHandle, res.Theses[0].IdentifierType)
}

func TestHarvestDSpaceRepoHonorsRecordCap(t *testing.T) {
	srv := newOAIServer(t,
		[]string{
			oaiRecord("One", "Thesis", "1/1"),
			oaiRecord("Two", "Thesis", "1/2"),
			oaiRecord("Three", "Thesis", "1/3"),
		},
		[]string{oaiRecord("Four", "Thesis", "1/4")})
	defer srv.Close()

	svc, _, _ := newTestService(t, testHarvestConfig())
	repo := config.OAIRepo{ID: "uct", Name: "UCT", Endpoint: srv.URL}

	res, err := svc.HarvestDSpaceRepo(context.Background(), repo, 2)
	require.NoError(t, err)
	assert.Len(t, res.Theses, 2)
}

func TestHarvestDSpaceRepoProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, _, _ := newTestService(t, testHarvestConfig())
	repo := config.OAIRepo{ID: "uct", Name: "UCT", Endpoint: srv.URL}

	_, err := svc.HarvestDSpaceRepo(context.Background(), repo, 40)
	assert.ErrorIs(t, err, ErrSourceUnreachable)
}

func TestHarvestDSpaceRepoProbeWithoutRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<OAI-PMH><error code="badVerb">nope</error></OAI-PMH>`))
	}))
	defer srv.Close()

	svc, _, _ := newTestService(t, testHarvestConfig())
	repo := config.OAIRepo{ID: "uct", Name: "UCT", Endpoint: srv.URL}

	_, err := svc.HarvestDSpaceRepo(context.Background(), repo, 40)
	assert.ErrorIs(t, err, ErrSourceUnreachable)
}

func parsedWithType(t *testing.T, term string) *oaixml.ParsedRecord {
	t.Helper()
	pr := &oaixml.ParsedRecord{Title: "X", Type: oaixml.TypeOther}
	if term != "" {
		pr.TypeTerms = []string{term}
		pr.Type = oaixml.ClassifyType(pr.TypeTerms)
	}
	return pr
}

func TestCategorize(t *testing.T) {
	cat, keep := categorize(parsedWithType(t, "Doctoral Thesis"))
	assert.True(t, keep)
	assert.Equal(t, domain.CategoryThesis, cat)

	cat, keep = categorize(parsedWithType(t, "Journal Article"))
	assert.True(t, keep)
	assert.Equal(t, domain.CategoryArticle, cat)

	// Named but neither thesis nor article: kept as an article.
	cat, keep = categorize(parsedWithType(t, "Book Chapter"))
	assert.True(t, keep)
	assert.Equal(t, domain.CategoryArticle, cat)

	// No type vocabulary at all: dropped.
	_, keep = categorize(parsedWithType(t, ""))
	assert.False(t, keep)
}
