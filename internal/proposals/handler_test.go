package proposals

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutonspeed/beauty-precision-platform/internal/tenancy"
	"github.com/nutonspeed/beauty-precision-platform/pkg/logging"
)

func newTestServer(t *testing.T) (*httptest.Server, *workflowFixture) {
	t.Helper()
	f := newWorkflowFixture(t)
	handler := NewHandler(f.service, logging.New("error"))

	// Stand-in for the identity middleware.
	authed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if actor := r.Header.Get("X-Sales-User-Id"); actor != "" {
			ctx = tenancy.WithActorID(ctx, actor)
		}
		if clinic := r.Header.Get("X-Clinic-Id"); clinic != "" {
			ctx = tenancy.WithClinicID(ctx, clinic)
		}
		handler.Routes().ServeHTTP(w, r.WithContext(ctx))
	})

	server := httptest.NewServer(authed)
	t.Cleanup(server.Close)
	return server, f
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sales-User-Id", "rep-1")
	req.Header.Set("X-Clinic-Id", "clinic-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeProposal(t *testing.T, resp *http.Response) *Proposal {
	t.Helper()
	defer resp.Body.Close()
	var p Proposal
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	return &p
}

func TestHandlerCreateAndGet(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/", validCreateInput())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeProposal(t, resp)
	assert.Equal(t, StatusDraft, created.Status)

	resp = doJSON(t, http.MethodGet, server.URL+"/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeProposal(t, resp)
	assert.Equal(t, created.ID, got.ID)
}

func TestHandlerMissingActor(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/no-such-proposal", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "not_found", body["code"])
}

func TestHandlerLifecycleVerbs(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/", validCreateInput())
	created := decodeProposal(t, resp)

	// Accept before send is an invalid transition.
	resp = doJSON(t, http.MethodPost, server.URL+"/"+created.ID+"/accept", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, server.URL+"/"+created.ID+"/send", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sent := decodeProposal(t, resp)
	assert.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)

	resp = doJSON(t, http.MethodPost, server.URL+"/"+created.ID+"/view", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	viewed := decodeProposal(t, resp)
	assert.Equal(t, 1, viewed.ViewCount)

	resp = doJSON(t, http.MethodPost, server.URL+"/"+created.ID+"/reject", rejectRequest{Reason: "went with a competitor"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rejected := decodeProposal(t, resp)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "went with a competitor", rejected.RejectionReason)
}

func TestHandlerUpdateAndDelete(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/", validCreateInput())
	created := decodeProposal(t, resp)

	newTitle := "Laser Package (revised)"
	resp = doJSON(t, http.MethodPatch, server.URL+"/"+created.ID, UpdateInput{Title: &newTitle})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeProposal(t, resp)
	assert.Equal(t, newTitle, updated.Title)

	resp = doJSON(t, http.MethodDelete, server.URL+"/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, server.URL+"/"+created.ID, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerList(t *testing.T) {
	server, _ := newTestServer(t)

	for i := 0; i < 3; i++ {
		resp := doJSON(t, http.MethodPost, server.URL+"/", validCreateInput())
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/?limit=2", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result ListResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Items, 2)
	assert.True(t, result.HasMore)
}
