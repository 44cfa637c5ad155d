package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	uri    string
	body   map[string]any
}

func newTestServer(t *testing.T, status int, reply string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.uri = r.URL.RequestURI()
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRobotsList(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, `{"robots":[],"count":0}`)
	out, err := execute(t, srv, "robots", "list")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/api/robots", got.uri)
	assert.Contains(t, out, `"count": 0`)
}

func TestRobotsCreate(t *testing.T) {
	srv, got := newTestServer(t, http.StatusCreated, `{"id":"r1"}`)
	_, err := execute(t, srv, "robots", "create",
		"--name", "nightly", "--email", "admin@example.test",
		"--schedule-days", "3", "--last-active-days", "90", "--check-email")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/robots", got.uri)
	assert.Equal(t, "nightly", got.body["name"])
	assert.Equal(t, "CLOUD", got.body["platformType"])
	assert.Equal(t, float64(3), got.body["scheduleDays"])
	assert.Equal(t, float64(90), got.body["lastActiveDays"])
	assert.Equal(t, true, got.body["checkDoubleEmail"])
	assert.Equal(t, true, got.body["active"])
	_, hasDescription := got.body["description"]
	assert.False(t, hasDescription)
}

func TestRobotsCreate_RequiresName(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusCreated, `{}`)
	_, err := execute(t, srv, "robots", "create", "--email", "admin@example.test")
	require.Error(t, err)
}

func TestRobotsDeleteAndRun(t *testing.T) {
	srv, got := newTestServer(t, http.StatusNoContent, "")
	out, err := execute(t, srv, "robots", "delete", "r 1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.Equal(t, "/api/robots/r%201", got.uri)
	assert.Equal(t, "deleted r 1\n", out)

	srv2, got2 := newTestServer(t, http.StatusOK, `{"queued":1}`)
	_, err = execute(t, srv2, "robots", "run", "r1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got2.method)
	assert.Equal(t, "/api/robots/r1/run", got2.uri)
}

func TestReport(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, `{"queued":[],"removed":[]}`)
	out, err := execute(t, srv, "report", "--robot", "r1")
	require.NoError(t, err)
	assert.Equal(t, "/api/report?robotId=r1", got.uri)
	assert.True(t, strings.HasPrefix(out, "{\n"))
}

func TestReportEmail(t *testing.T) {
	srv, got := newTestServer(t, http.StatusOK, `{"status":"sent"}`)
	_, err := execute(t, srv, "report", "email", "--to", "ops@example.test", "-r", "r1")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/report/email", got.uri)
	assert.Equal(t, "ops@example.test", got.body["email"])
	assert.Equal(t, "r1", got.body["robotId"])
}

func TestErrorResponseSurfacesMessage(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, `{"error":"Not Found","code":404,"message":"robot r9 not found"}`)
	_, err := execute(t, srv, "robots", "get", "r9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "robot r9 not found")
}
