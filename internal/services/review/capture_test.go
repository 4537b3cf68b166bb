package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/claimlens/internal/common"
	"github.com/ternarybob/claimlens/internal/models"
)

func TestCaptureEnrich(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Aspirin Facts</title></head>` +
			`<body><script>ignored()</script><h1>Aspirin</h1><p>Reduces fever.</p></body></html>`))
	}))
	defer server.Close()

	client := newCaptureClient(&common.ReviewConfig{MaxSnapshotBytes: 64, CaptureTimeout: "5s"}, arbor.NewLogger())

	claims := []*models.ClaimRecord{
		{Citations: []models.Citation{{URI: server.URL}}},
		{Citations: []models.Citation{{Title: "Existing", URI: server.URL}}},
	}

	client.enrich(context.Background(), claims)

	assert.Equal(t, int32(1), hits.Load(), "same URI should be fetched once")

	first := claims[0].Citations[0]
	assert.Equal(t, "Aspirin Facts", first.Title)
	assert.Contains(t, first.Snapshot, "Aspirin")
	assert.NotContains(t, first.Snapshot, "ignored")
	assert.LessOrEqual(t, len(first.Snapshot), 64)

	second := claims[1].Citations[0]
	assert.Equal(t, "Existing", second.Title)
	assert.NotEmpty(t, second.Snapshot)
}

func TestCaptureSkipsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	client := newCaptureClient(&common.ReviewConfig{}, arbor.NewLogger())

	claims := []*models.ClaimRecord{
		{Citations: []models.Citation{{Title: "Kept", URI: server.URL}}},
	}
	client.enrich(context.Background(), claims)

	assert.Empty(t, claims[0].Citations[0].Snapshot)
	assert.Equal(t, "Kept", claims[0].Citations[0].Title)
}

func TestTruncateBytesRuneBoundary(t *testing.T) {
	assert.Equal(t, "h", truncateBytes("héllo", 2))
	assert.Equal(t, "héllo", truncateBytes("héllo", 10))
}
