package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(SwipesTotal.WithLabelValues("like"))
	SwipesTotal.WithLabelValues("like").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SwipesTotal.WithLabelValues("like")))

	before = testutil.ToFloat64(MatchesTotal.WithLabelValues("created"))
	MatchesTotal.WithLabelValues("created").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MatchesTotal.WithLabelValues("created")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	SwipesTotal.WithLabelValues("pass").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "skillswap_swipes_total"))
	assert.True(t, strings.Contains(body, "skillswap_connections_total"))
}
