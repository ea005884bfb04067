package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"dyss/boundary"
	"dyss/classifier"
	"dyss/raw"
	"dyss/utils"

	"github.com/buger/jsonparser"
	"github.com/dustin/go-humanize"
)

const maxBodySize = 256 << 20 // 256 MB

type verdictResponse struct {
	ReadID string `json:"readId,omitempty"`
	Class  string `json:"class"`
	Code   int32  `json:"code"`
}

type explainResponse struct {
	verdictResponse
	Samples   int     `json:"samples"`
	Events    int     `json:"events"`
	Deduped   int     `json:"deduped"`
	Matched   bool    `json:"matched"`
	Score     float32 `json:"score,omitempty"`
	Start     int     `json:"start,omitempty"`
	Strand    string  `json:"strand,omitempty"`
	Abandoned bool    `json:"abandoned,omitempty"`
	Packs     int     `json:"packs"`
	Pruned    int     `json:"pruned"`
	Completed int     `json:"completed"`
}

type statsResponse struct {
	Threshold    float32 `json:"threshold"`
	Specificity  float32 `json:"specificity"`
	QuerySize    int     `json:"querySize"`
	ReferenceLen int     `json:"referenceLen"`
	Accepted     int64   `json:"accepted"`
	Rejected     int64   `json:"rejected"`
	Insufficient int64   `json:"insufficient"`
	Total        int64   `json:"total"`
	Summary      string  `json:"summary"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	log.Printf("[error] %d: %s", status, msg)
	writeJSON(w, status, map[string]string{"error": msg})
}

// server answers classification requests against one constructed handle.
type server struct {
	handle boundary.Handle
	tally  tally
}

func newServer(h boundary.Handle) *server {
	return &server{handle: h}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/classify", s.handleClassify)
	mux.HandleFunc("/api/batch", s.handleBatch)
	mux.HandleFunc("/api/stats", s.handleStats)

	return requestLogger(corsMiddleware(mux))
}

func serve(configPath, port string) {
	h, closeFn, err := openClassifier(configPath)
	if err != nil {
		log.Fatalf("server error: %v", err)
	}
	defer closeFn()

	s := newServer(h)
	log.Printf("starting server on port %s\n", port)
	if err := http.ListenAndServe(":"+port, s.routes()); err != nil {
		log.Printf("server error: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(rec, r)

		// stats polling is noisy
		if strings.HasPrefix(r.URL.Path, "/api/") && r.URL.Path != "/api/stats" {
			log.Printf("[http] %s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %v", err)
	}
	return data, nil
}

func verdict(id string, c classifier.Classification) verdictResponse {
	return verdictResponse{ReadID: id, Class: c.String(), Code: int32(c)}
}

func (s *server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	read, err := raw.ParseJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := boundary.Classifier(s.handle)
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier not available")
		return
	}
	e := c.Explain(read.Samples)
	s.tally.add(e.Class)

	resp := explainResponse{
		verdictResponse: verdict(read.ID, e.Class),
		Samples:         e.Stats.Raw,
		Events:          e.Stats.Events,
		Deduped:         e.Stats.Deduped,
		Matched:         e.Matched,
		Abandoned:       e.Abandoned,
		Packs:           e.Search.Packs,
		Pruned:          e.Search.Pruned,
		Completed:       e.Search.Completed,
	}
	if e.Matched {
		resp.Score = e.Score
		resp.Start = e.Start
		resp.Strand = e.Strand.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBatch takes {"queries": [{"read_id": ..., "samples": [...]}, ...]}
// and answers with the verdicts in request order.
func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	reqID := utils.GenerateRequestID()
	reqStart := time.Now()

	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var reads []*raw.Read
	var parseErr error
	_, err = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if parseErr != nil {
			return
		}
		if dataType != jsonparser.Object {
			parseErr = fmt.Errorf("query %d is not an object", len(reads))
			return
		}
		read, err := raw.ParseJSON(value)
		if err != nil {
			parseErr = fmt.Errorf("query %d: %v", len(reads), err)
			return
		}
		reads = append(reads, read)
	}, "queries")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid queries: %v", err))
		return
	}
	if parseErr != nil {
		writeError(w, http.StatusBadRequest, parseErr.Error())
		return
	}

	queries := make([][]int32, len(reads))
	lengths := make([]int, len(reads))
	for i, rd := range reads {
		queries[i] = rd.Samples
		lengths[i] = len(rd.Samples)
	}
	out := make([]classifier.Classification, len(reads))

	status := boundary.BatchClassify(s.handle, queries, lengths, len(reads), out)
	if status != boundary.StatusOK {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("batch failed: %s", status))
		return
	}
	s.tally.add(out...)

	results := make([]verdictResponse, len(reads))
	for i, rd := range reads {
		results[i] = verdict(rd.ID, out[i])
	}

	log.Printf("[batch %s] %d reads in %s", reqID, len(reads), time.Since(reqStart))
	writeJSON(w, http.StatusOK, map[string]any{
		"requestId": reqID,
		"results":   results,
		"elapsedMs": time.Since(reqStart).Milliseconds(),
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	c := boundary.Classifier(s.handle)
	if c == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier not available")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Threshold:    c.Threshold(),
		Specificity:  c.Specificity(),
		QuerySize:    c.QuerySize(),
		ReferenceLen: c.ReferenceLen(),
		Accepted:     s.tally.accepted.Load(),
		Rejected:     s.tally.rejected(),
		Insufficient: s.tally.insufficient.Load(),
		Total:        s.tally.total.Load(),
		Summary:      fmt.Sprintf("%s reads classified", humanize.Comma(s.tally.total.Load())),
	})
}
