package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreExposed(t *testing.T) {
	MessagesCreated.Inc()
	CacheLookups.WithLabelValues("thread", CacheHit).Inc()

	assert.GreaterOrEqual(t, testutil.ToFloat64(MessagesCreated), float64(1))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "message_service_messages_created_total")
	assert.Contains(t, string(body), `message_service_cache_lookups_total{result="hit",view="thread"}`)
}
