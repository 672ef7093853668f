package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/service-portal/internal/domain"
	apperrors "github.com/spec-kit/service-portal/pkg/errorutil"
)

const twoTickets = `[
	{"id":"a","ticketId":"TCK-000002","category":"CCTV","title":"Camera","status":"New","timeline":[]},
	{"id":"b","ticketId":"TCK-000001","category":"Plumbing","title":"Leak","status":"Closed","timeline":[{"note":"fixed","addedBy":"Support","addedAt":"2024-01-01T09:00:00Z","images":[]}]}
]`

func TestDecodeListBareArray(t *testing.T) {
	page, err := DecodeList([]byte(twoTickets), domain.KindTicket, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore, "a full page without a hint implies more")
	assert.Equal(t, "TCK-000002", page.Items[0].DisplayID)
	assert.Equal(t, domain.KindTicket, page.Items[0].Kind)
	require.Len(t, page.Items[1].Timeline, 1)
	assert.Equal(t, "fixed", page.Items[1].Timeline[0].Note)

	page, err = DecodeList([]byte(twoTickets), domain.KindTicket, 10)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
}

func TestDecodeListObjectKeys(t *testing.T) {
	for _, key := range []string{"items", "tickets", "requests", "serviceRequests"} {
		t.Run(key, func(t *testing.T) {
			body := `{"` + key + `":[{"id":"x","requestId":"SRQ-000001","status":"Completed"}]}`
			page, err := DecodeList([]byte(body), domain.KindServiceRequest, 1)
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, "SRQ-000001", page.Items[0].DisplayID)
			assert.True(t, page.HasMore)
		})
	}
}

func TestDecodeListExplicitHasMore(t *testing.T) {
	page, err := DecodeList([]byte(`{"items":[{"id":"x"}],"hasMore":false}`), domain.KindTicket, 1)
	require.NoError(t, err)
	assert.False(t, page.HasMore)

	page, err = DecodeList([]byte(`{"items":[],"hasMore":true}`), domain.KindTicket, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.True(t, page.HasMore)
}

func TestDecodeListRejectsUnknownShapes(t *testing.T) {
	bodies := []string{
		``,
		`{"data":[]}`,
		`"tickets"`,
		`{"items":{"id":"x"}}`,
		`[1,2`,
		`{"items":[],"hasMore":"yes"}`,
	}
	for _, body := range bodies {
		_, err := DecodeList([]byte(body), domain.KindTicket, 10)
		require.Error(t, err, body)
		assert.Equal(t, apperrors.CodeDecode, apperrors.CodeOf(err), body)
	}
}
