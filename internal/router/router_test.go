package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kevgir/internal/catalog"
	"kevgir/internal/domain"
	"kevgir/internal/pipeline"
)

type fakeReconciler struct {
	branch string
	report pipeline.Report
	keys   catalog.Result
	err    error
}

func (f *fakeReconciler) Reconcile(_ context.Context, branch string) (pipeline.Report, error) {
	f.branch = branch
	return f.report, f.err
}

func (f *fakeReconciler) Keys(_ context.Context, branch string) (catalog.Result, error) {
	f.branch = branch
	return f.keys, f.err
}

func TestReconcileRoute(t *testing.T) {
	fake := &fakeReconciler{report: pipeline.Report{RunID: "r1", Branch: "Kadikoy", Keys: []pipeline.KeyReport{
		{State: pipeline.StateDone}, {State: pipeline.StateFailed},
	}}}
	engine := NewEngine(NewReconcileHandler(fake, nil))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/Kadikoy", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Kadikoy", fake.branch)

	var body struct {
		Report    pipeline.Report `json:"report"`
		Succeeded int             `json:"succeeded"`
		Failed    int             `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "r1", body.Report.RunID)
	assert.Equal(t, 1, body.Succeeded)
	assert.Equal(t, 1, body.Failed)
}

func TestReconcileRoutePreconditionFailure(t *testing.T) {
	engine := NewEngine(NewReconcileHandler(&fakeReconciler{err: errors.New("token expired")}, nil))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reconcile/Kadikoy", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestKeysRoute(t *testing.T) {
	fake := &fakeReconciler{keys: catalog.Result{
		Keys:    []domain.RestaurantKey{{StoreID: 1001, MenuID: 123, RestaurantKey: "k1"}},
		Skipped: []catalog.RowParseError{{Row: 3, Reason: "short"}},
	}}
	engine := NewEngine(NewReconcileHandler(fake, nil))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/keys/Kadikoy", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"restaurant_key":"k1"`)
	assert.Contains(t, w.Body.String(), `"row":3`)
}

func TestHealthAndMetrics(t *testing.T) {
	engine := NewEngine(NewReconcileHandler(&fakeReconciler{}, nil))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
