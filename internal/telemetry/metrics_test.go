package telemetry

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxerrors "github.com/Aman-CERP/docidx/internal/errors"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestMetrics_ObserveOperation_LabelsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("add_document", time.Millisecond, nil)
	m.ObserveOperation("add_document", time.Millisecond, dxerrors.WriteError("boom", nil))
	m.ObserveOperation("commit", time.Millisecond, errors.New("plain"))

	body := scrape(t, reg)
	assert.Contains(t, body, `docidx_operations_total{operation="add_document",status="ok"} 1`)
	assert.Contains(t, body, `docidx_operations_total{operation="add_document",status="ERR_202_WRITE_FAILED"} 1`)
	assert.Contains(t, body, `docidx_operations_total{operation="commit",status="error"} 1`)
	assert.Contains(t, body, `docidx_operation_duration_seconds_count{operation="add_document"} 2`)
}

func TestMetrics_ObserveSearch_TracksZeroResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSearch("flutter", 2, time.Millisecond)
	m.ObserveSearch("nothing", 0, time.Millisecond)

	assert.Contains(t, scrape(t, reg), "docidx_zero_result_queries_total 1")
	recent := m.RecentQueries()
	require.Len(t, recent, 2)
	assert.Equal(t, "flutter", recent[0].Query)
	assert.True(t, recent[1].IsZeroResult())
}

func TestMetrics_WatchIndex_SamplesOnScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.WatchIndex(func() (IndexState, bool) {
		return IndexState{Documents: 3, Staged: 1, Generation: 9}, true
	})

	body := scrape(t, reg)
	assert.Contains(t, body, "docidx_documents 3")
	assert.Contains(t, body, "docidx_staged_operations 1")
	assert.Contains(t, body, "docidx_commit_generation 9")
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", prometheus.NewRegistry()) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	b := NewCircularBuffer[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	assert.Equal(t, []int{3, 4, 5}, b.Items())
	assert.Equal(t, 3, b.Size())
}
