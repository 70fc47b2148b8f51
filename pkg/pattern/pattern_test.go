package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	d := Default()
	assert.Equal(t, PaginationNone, d.Pagination.Kind)
	assert.Equal(t, EnvelopeStandard, d.Envelope.Kind)
	assert.Equal(t, "id", d.PrimaryKeyField)
	assert.False(t, d.HasDataPath())
	assert.False(t, d.RateLimit.Detected())
	assert.False(t, d.AuthRequired)
}

func TestWithHelpers_DoNotMutateReceiver(t *testing.T) {
	original := Default().
		WithDataPath("data").
		WithEnvelope(Envelope{
			Kind:            EnvelopeWrapped,
			StatusFieldPath: "meta.status",
			WrapperKeys:     [2]string{"meta", "data"},
		}).
		WithPagination(Pagination{
			Kind:             PaginationCursor,
			CursorFieldPath:  "cursor",
			HasNextFieldPath: DefaultHasNextPath,
		})
	snapshot := original

	refined := original.
		WithDataPath("results").
		WithEnvelope(Envelope{Kind: EnvelopeStandard}).
		WithPagination(Pagination{Kind: PaginationNone}).
		WithAuthRequired(true).
		WithPrimaryKey("campaignId").
		WithRateLimit(RateLimit{LimitHeader: "RateLimit-Limit"})

	assert.True(t, original.Equal(snapshot))
	assert.Equal(t, "data", original.DataPath)
	assert.Equal(t, EnvelopeWrapped, original.Envelope.Kind)
	assert.Equal(t, PaginationCursor, original.Pagination.Kind)

	assert.Equal(t, "results", refined.DataPath)
	assert.True(t, refined.AuthRequired)
	assert.Equal(t, "campaignId", refined.PrimaryKeyField)
	assert.True(t, refined.RateLimit.Detected())
	assert.False(t, refined.Equal(original))
}

func TestPaginationKindValid(t *testing.T) {
	for _, k := range []PaginationKind{PaginationNone, PaginationCursor, PaginationOffset, PaginationPage} {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, PaginationKind("link-header").Valid())
}

func TestSplitPath(t *testing.T) {
	assert.Nil(t, SplitPath(""))
	assert.Nil(t, SplitPath(RootPath))
	assert.Equal(t, []string{"data"}, SplitPath("data"))
	assert.Equal(t, []string{"pagination", "navigation", "nextCursor"}, SplitPath("pagination.navigation.nextCursor"))
}

func TestString(t *testing.T) {
	d := Default().WithDataPath("data.campaigns")
	assert.Equal(t,
		"pagination=none envelope=standard rate_limit=no data_path=data.campaigns primary_key=id auth_required=false",
		d.String())
}
