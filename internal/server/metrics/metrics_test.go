package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/atlanticdynamic/lynxserve/internal/build"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBuild(t *testing.T) {
	t.Parallel()
	m := New()
	id := build.NewCycleID()

	m.ObserveBuild(build.Building(id))
	m.ObserveBuild(build.Completed(id, &build.Result{}, 20*time.Millisecond))
	m.ObserveBuild(build.Completed(id, &build.Result{Errors: []build.Message{{Text: "x"}}}, time.Millisecond))
	m.ObserveBuild(build.Fatal(id, errors.New("boom")))

	assert.InDelta(t, 1, testutil.ToFloat64(m.builds.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.builds.WithLabelValues("errors")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.builds.WithLabelValues("fatal")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.builds.WithLabelValues("building")), 0)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "lynxserve_build_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestRequestsAndSubscribers(t *testing.T) {
	t.Parallel()
	m := New()

	m.ObserveRequest(KindArtifact, http.StatusOK)
	m.ObserveRequest(KindArtifact, http.StatusOK)
	m.ObserveRequest(KindUnavailable, http.StatusServiceUnavailable)
	m.SetHotSubscribers(3)

	assert.InDelta(t, 2, testutil.ToFloat64(m.requests.WithLabelValues(KindArtifact, "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues(KindUnavailable, "503")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.hotSubscribers), 0)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveRequest(KindContent, http.StatusOK)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "lynxserve_http_requests_total")
	assert.Contains(t, string(body), "lynxserve_hot_subscribers")
}

func TestIndependentRegistries(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	a.SetHotSubscribers(5)
	assert.InDelta(t, 0, testutil.ToFloat64(b.hotSubscribers), 0)
	assert.NotSame(t, a.Registry(), b.Registry())
}
