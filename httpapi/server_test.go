package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlplane/simkube/history"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestServer() *Server {
	clock := fixedClock{t: time.Unix(1000, 0)}
	return NewServer(history.NewLinearizable(clock), clock)
}

func TestCoreDiscoveryListsPodsAndNodes(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body apiResourceList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	names := make([]string, len(body.Resources))
	for i, r := range body.Resources {
		names[i] = r.Name
	}
	assert.Contains(t, names, "pods")
	assert.Contains(t, names, "nodes")
}

func TestCreateAndGetPodRoundTrips(t *testing.T) {
	s := newTestServer()

	createBody := `{"Meta":{"Name":"pod-a"}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/namespaces/default/pods", strings.NewReader(createBody))
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/namespaces/default/pods/pod-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "pod-a", got.Metadata.Name)
	assert.Equal(t, "default", got.Metadata.Namespace)
}

func TestGetMissingPodReturnsNotFound(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/namespaces/default/pods/ghost", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeploymentScaleSubresource(t *testing.T) {
	s := newTestServer()

	createBody := `{"Meta":{"Name":"dep-a"},"Spec":{"Replicas":1}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/apis/apps/v1/namespaces/default/deployments", strings.NewReader(createBody))
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	scaleBody := `{"spec":{"replicas":5}}`
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/apis/apps/v1/namespaces/default/deployments/dep-a/scale", strings.NewReader(scaleBody))
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/apis/apps/v1/namespaces/default/deployments/dep-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Spec struct {
			Replicas int32
		} `json:"spec"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 5, got.Spec.Replicas)
}
