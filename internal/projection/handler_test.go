package projection

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/pulse-lab/project-pulse/internal/core/aggregate"
	httperr "github.com/pulse-lab/project-pulse/internal/core/errors"
)

func newProjectionRouter(store *stubAggregateStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(store)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func TestHandleQueryAggregates_Success(t *testing.T) {
	store := &stubAggregateStore{records: []*aggregate.Record{
		closedMinuteRecord(t, "10:05", "students", time.Minute, "user-1"),
	}}
	r := newProjectionRouter(store)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/aggregates?granularity=minute&group=students&start=2026-02-11T10:00:00Z&end=2026-02-11T11:00:00Z", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var body AggregateQueryResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "minute", body.Granularity)
	require.Len(t, body.Values, 1)
	require.Equal(t, 1, body.Values[0].ParticipantCount)
}

func TestHandleQueryAggregates_MissingParams(t *testing.T) {
	r := newProjectionRouter(&stubAggregateStore{})

	req := httptest.NewRequest(http.MethodGet, "/v1/aggregates?granularity=minute", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)

	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpInvalidQueryError, errResp.ErrorType)
}

func TestHandleQueryAggregates_UnknownGranularity(t *testing.T) {
	r := newProjectionRouter(&stubAggregateStore{})

	req := httptest.NewRequest(http.MethodGet,
		"/v1/aggregates?granularity=decade&start=2026-02-11T10:00:00Z&end=2026-02-11T11:00:00Z", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleQuerySummary_Success(t *testing.T) {
	store := &stubAggregateStore{records: []*aggregate.Record{
		closedMinuteRecord(t, "10:05", "", time.Minute, "user-1", "user-2"),
	}}
	r := newProjectionRouter(store)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/aggregates/summary?granularity=minute&start=2026-02-11T10:00:00Z&end=2026-02-11T11:00:00Z", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, float64(1), body["bucket_count"])
	require.Equal(t, float64(2), body["distinct_participants"])
}
