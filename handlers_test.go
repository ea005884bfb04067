package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"dyss/boundary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *server {
	t.Helper()
	dir := t.TempDir()
	ref := filepath.Join(dir, "reference.fa")
	model := filepath.Join(dir, "template.model")
	params := filepath.Join(dir, "parameters.csv")

	var m strings.Builder
	m.WriteString("kmer\tlevel_mean\n")
	level := 70.0
	for _, a := range "ACGT" {
		for _, b := range "ACGT" {
			m.WriteString(string(a) + string(b) + "\t" + strconv.FormatFloat(level, 'f', 2, 64) + "\n")
			level += 4.25
		}
	}
	r := rand.New(rand.NewSource(3))
	seq := make([]byte, 600)
	for i := range seq {
		seq[i] = "ACGT"[r.Intn(4)]
	}

	require.NoError(t, os.WriteFile(model, []byte(m.String()), 0o644))
	require.NoError(t, os.WriteFile(ref, []byte(">target\n"+string(seq)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(params, []byte("refsize,power,packs,scouts,threshold,specificity\n2,9,3,14,6.5,0.95\n"), 0o644))

	h := boundary.Construct(14, 3, ref, model, params, 9, 20, 2000)
	require.True(t, boundary.Live(h))
	t.Cleanup(func() { boundary.Destroy(h) })
	return newServer(h)
}

func readJSON(id string, samples []int32) string {
	parts := make([]string, len(samples))
	for i, s := range samples {
		parts[i] = strconv.Itoa(int(s))
	}
	return `{"read_id":"` + id + `","channel":1,"samples":[` + strings.Join(parts, ",") + `]}`
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleClassifyShortRead(t *testing.T) {
	s := testServer(t)

	rec := do(t, s.routes(), http.MethodPost, "/api/classify", readJSON("r1", []int32{500, 510, 520}))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp explainResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r1", resp.ReadID)
	assert.Equal(t, "insufficient", resp.Class)
	assert.Equal(t, int32(2), resp.Code)
	assert.Equal(t, 3, resp.Samples)
	assert.False(t, resp.Matched)
	assert.Zero(t, resp.Packs)
}

func TestHandleClassifyRejectsBadInput(t *testing.T) {
	s := testServer(t)
	h := s.routes()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/classify", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/classify", "{not json").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/classify", `{"samples":[1,"x"]}`).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodOptions, "/api/classify", "").Code)
}

func TestHandleBatchKeepsOrder(t *testing.T) {
	s := testServer(t)

	short := []int32{1, 2, 3}
	body := `{"queries":[` +
		readJSON("a", short) + "," +
		readJSON("b", nil) + "," +
		readJSON("c", short) + `]}`
	rec := do(t, s.routes(), http.MethodPost, "/api/batch", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RequestID string            `json:"requestId"`
		Results   []verdictResponse `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.RequestID, 8)
	require.Len(t, resp.Results, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, resp.Results[i].ReadID)
		assert.Equal(t, "insufficient", resp.Results[i].Class)
	}
	assert.Equal(t, int64(3), s.tally.total.Load())
	assert.Equal(t, int64(3), s.tally.insufficient.Load())
}

func TestHandleBatchInvalid(t *testing.T) {
	s := testServer(t)
	h := s.routes()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/batch", `{"reads":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/batch", `{"queries":[1,2]}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/batch", "").Code)
}

func TestHandleStats(t *testing.T) {
	s := testServer(t)
	h := s.routes()
	do(t, h, http.MethodPost, "/api/classify", readJSON("r1", []int32{1}))

	rec := do(t, h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 6.5, resp.Threshold, 1e-6)
	assert.Equal(t, 20, resp.QuerySize)
	assert.Positive(t, resp.ReferenceLen)
	assert.Equal(t, int64(1), resp.Total)
	assert.Equal(t, int64(1), resp.Insufficient)
	assert.Equal(t, int64(0), resp.Rejected)
}

func TestHandlersWithNullHandle(t *testing.T) {
	s := newServer(0)
	h := s.routes()

	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/classify", readJSON("r", []int32{1})).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/batch", `{"queries":[]}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/stats", "").Code)
}

func TestTallySummary(t *testing.T) {
	var tl tally
	tl.add(1, 0, 2, 1)
	assert.Equal(t, int64(1), tl.rejected())
	assert.Equal(t, "result: (accepted,rejected,insufficient,total) = 2/1/1/4", tl.summary())
}
