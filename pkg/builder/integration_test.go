package builder

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/adagent/pkg/config"
	"github.com/ajitpratap0/adagent/pkg/pattern"
	"github.com/ajitpratap0/adagent/pkg/store"
	"github.com/ajitpratap0/adagent/pkg/testutil"
)

// PlatformSuite builds drivers against mock ad platforms shaped like the
// real ones.
type PlatformSuite struct {
	testutil.IntegrationTestSuite
}

func TestPlatformSuite(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(PlatformSuite))
}

func (s *PlatformSuite) orchestrator(name string, sources map[string]config.SourceConfig) *Orchestrator {
	cfg := config.Default()
	cfg.Drivers.Dir = s.TempDir(name)
	if sources != nil {
		cfg.Sources = sources
	}
	return New(cfg, testutil.TestLogger(s.T()))
}

func (s *PlatformSuite) TestCursorPaginatedPlatform() {
	page1 := testutil.JSON(`{"data":[{"id":"t1"},{"id":"t2"}],"pagination":{"navigation":{"nextCursor":"abc","hasNext":true}}}`)
	page2 := testutil.JSON(`{"data":[{"id":"t3"},{"id":"t4"}],"pagination":{"navigation":{"nextCursor":null,"hasNext":false}}}`)
	api := testutil.NewMockAPI(s.T(), testutil.ByQuery("cursor", map[string]testutil.Reply{"": page1, "abc": page2}, page1))

	o := s.orchestrator("tiktok", nil)
	outcome, err := o.BuildDriver(s.Context(), Request{SourceName: "tiktok", BaseURL: api.URL, Endpoint: "/api/v1/campaigns"})
	s.Require().NoError(err)
	s.Require().True(outcome.Success, outcome.FinalError)
	s.Len(outcome.Attempts, 1)

	p := outcome.Attempts[0].Pattern
	s.Equal(pattern.PaginationCursor, p.Pagination.Kind)
	s.Equal("pagination.navigation.nextCursor", p.Pagination.CursorFieldPath)
	s.Equal(3, outcome.Attempts[0].Result.ItemsSampled)

	queries := api.Queries()
	s.Require().Len(queries, 3)
	s.Equal("1", queries[1].Get("page"))
	s.Equal("10", queries[1].Get("pageSize"))
	s.Equal("abc", queries[2].Get("cursor"))
	s.Equal("2", queries[2].Get("page"))
}

func (s *PlatformSuite) TestBrokenCursorFallsBackToSinglePage() {
	api := testutil.NewMockAPI(s.T(), testutil.Sequence(
		testutil.JSON(`{"data":[{"id":1},{"id":2}],"cursor":null,"hasNext":true}`),
	))

	o := s.orchestrator("broken_cursor", nil)
	outcome, err := o.BuildDriver(s.Context(), Request{SourceName: "acme", BaseURL: api.URL})
	s.Require().NoError(err)
	s.Require().True(outcome.Success, outcome.FinalError)
	s.Require().Len(outcome.Attempts, 2)

	first := outcome.Attempts[0]
	s.Equal(pattern.PaginationCursor, first.Pattern.Pagination.Kind)
	s.Contains(first.Result.ErrorText, "pagination")
	s.Equal([]Signature{{Kind: PaginationFailure}}, first.Signatures)
	s.Equal(pattern.PaginationNone, outcome.Attempts[1].Pattern.Pagination.Kind)
	s.Equal(2, outcome.Attempts[1].Result.ItemsSampled)
}

func (s *PlatformSuite) TestWrappedPlatformWithAPIKey() {
	body := testutil.JSON(`{"responseMetadata":{"status":"SUCCESS","requestId":"r1"},"data":{"campaigns":[{"campaignId":"s1"},{"campaignId":"s2"},{"campaignId":"s3"}]}}`)
	api := testutil.NewMockAPI(s.T(), testutil.RequireHeader("X-Seznam-Api-Key", "demo_api_key_12345", testutil.Sequence(body)))

	o := s.orchestrator("seznam", map[string]config.SourceConfig{
		"seznam": {
			BaseURL:  api.URL,
			Endpoint: "/api/v2/campaigns",
			Headers:  map[string]string{"X-Seznam-Api-Key": "demo_api_key_12345"},
		},
	})
	ready, results := o.EnsureDrivers(s.Context(), []string{"seznam"})
	s.Require().True(ready["seznam"])
	s.Require().Len(results, 1)

	outcome := results[0].Outcome
	s.Require().NotNil(outcome)
	p := outcome.Attempts[0].Pattern
	s.Equal(pattern.EnvelopeWrapped, p.Envelope.Kind)
	s.Equal("data.campaigns", p.DataPath)
	s.Equal("campaignId", p.PrimaryKeyField)
	s.False(p.AuthRequired)

	ex, ok := o.LoadDriver("seznam")
	s.Require().True(ok)
	s.Equal(map[string]string{"seznam_api_key": "demo_api_key_12345"}, ex.Params())
	for _, h := range api.Headers() {
		s.Equal("demo_api_key_12345", h.Get("X-Seznam-Api-Key"))
	}
}

func (s *PlatformSuite) TestOffsetPlatformEndToEnd() {
	page := testutil.JSON(`{"data":[{"id":"g1","budget":10},{"id":"g2","budget":20},{"id":"g3","budget":30}],"offset":0,"limit":100}`)
	empty := testutil.JSON(`{"data":[],"offset":100,"limit":100}`)
	api := testutil.NewMockAPI(s.T(), testutil.ByQuery("offset", map[string]testutil.Reply{"": page, "0": page}, empty))

	o := s.orchestrator("google", map[string]config.SourceConfig{
		"google": {BaseURL: api.URL, Endpoint: "/api/v1/campaigns"},
	})
	ready, _ := o.EnsureDrivers(s.Context(), []string{"google"})
	s.Require().True(ready["google"])

	st, err := store.Open(store.MemoryPath, testutil.TestLogger(s.T()))
	s.Require().NoError(err)
	defer st.Close()

	res, err := o.Extract(s.Context(), "google", st, nil, 0)
	s.Require().NoError(err)
	s.Equal(3, res.Records)
	s.Equal(2, res.Pages)

	n, err := st.Count(s.Context(), "google_campaigns")
	s.Require().NoError(err)
	s.Equal(3, n)
}
