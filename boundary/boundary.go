// Package boundary is the caller-facing surface of the classifier:
// opaque handles with explicit construct and destroy, single-read
// classification with a safe default, and batch classification with
// per-input status codes.
//
// Every entry point validates its arguments before touching them and
// never panics on caller mistakes. Handles are small integers so they can
// cross a C ABI; the zero Handle is null.
package boundary

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"dyss/classifier"
)

// Handle refers to a constructed Classifier. the zero value is null.
type Handle uintptr

// Status is the result code of BatchClassify.
type Status int32

const (
	StatusNullHandle  Status = 0
	StatusOK          Status = 1
	StatusNullLengths Status = 2
	StatusNullData    Status = 3
	StatusNullQuery   Status = 4
	StatusNullOutput  Status = 5
)

func (s Status) String() string {
	switch s {
	case StatusNullHandle:
		return "null handle"
	case StatusOK:
		return "ok"
	case StatusNullLengths:
		return "null lengths"
	case StatusNullData:
		return "null data"
	case StatusNullQuery:
		return "null query"
	case StatusNullOutput:
		return "null output"
	}
	return "unknown status"
}

var (
	mu      sync.RWMutex
	next    Handle
	handles = map[Handle]*classifier.Classifier{}

	logger = slog.Default()
	pool   Pool
)

// SetLogger replaces the logger used for boundary diagnostics.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// SetWorkers fixes the batch worker count. n <= 0 uses one per CPU.
func SetWorkers(n int) {
	pool.Workers = n
}

// Construct builds a Classifier and returns its handle, or the null
// handle after logging the reason.
func Construct(numScouts, numPacks int, refPath, modelPath, paramPath string, power, querySize, refSize int) Handle {
	for name, p := range map[string]string{"reference": refPath, "model": modelPath, "calibration": paramPath} {
		if !validPath(p) {
			logger.Error("invalid path supplied; check the command line arguments", "file", name, "path", p)
			return 0
		}
	}
	return ConstructWith(classifier.Options{
		NumScouts:       numScouts,
		NumPacks:        numPacks,
		ReferencePath:   refPath,
		ModelPath:       modelPath,
		CalibrationPath: paramPath,
		Power:           power,
		QuerySize:       querySize,
		ReferenceSize:   refSize,
		Logger:          logger,
	})
}

// ConstructWith is Construct for callers holding a full Options value.
func ConstructWith(opts classifier.Options) Handle {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	c, err := classifier.New(opts)
	if err != nil {
		logger.Error("classifier could not be constructed; check that the files exist", "err", err)
		return 0
	}
	return register(c)
}

func register(c *classifier.Classifier) Handle {
	mu.Lock()
	defer mu.Unlock()
	next++
	handles[next] = c
	return next
}

func validPath(p string) bool {
	return p != "" && utf8.ValidString(p) && !strings.ContainsRune(p, 0)
}

func lookup(h Handle) *classifier.Classifier {
	if h == 0 {
		return nil
	}
	mu.RLock()
	defer mu.RUnlock()
	return handles[h]
}

// Live reports whether h is non-null.
func Live(h Handle) bool {
	return h != 0
}

// Classifier returns the classifier behind h, or nil.
func Classifier(h Handle) *classifier.Classifier {
	return lookup(h)
}

// Classify classifies one read. a null handle or nil query yields Reject.
func Classify(h Handle, query []int32) classifier.Classification {
	if query == nil {
		return classifier.Reject
	}
	c := lookup(h)
	if c == nil {
		return classifier.Reject
	}
	return c.Classify(query)
}

// BatchClassify classifies the first n queries in parallel. query i is
// data[i][:lengths[i]] and its verdict is written to out[i]. arguments are
// checked in the order handle, lengths, data, each query, output, and out
// is only written when the result is StatusOK. a negative n is reported as
// StatusNullLengths.
func BatchClassify(h Handle, data [][]int32, lengths []int, n int, out []classifier.Classification) Status {
	c := lookup(h)
	if c == nil {
		return StatusNullHandle
	}
	if n < 0 || lengths == nil || len(lengths) < n {
		return StatusNullLengths
	}
	if data == nil || len(data) < n {
		return StatusNullData
	}
	queries := make([][]int32, n)
	for i := 0; i < n; i++ {
		if data[i] == nil || lengths[i] < 0 || lengths[i] > len(data[i]) {
			return StatusNullQuery
		}
		queries[i] = data[i][:lengths[i]]
	}
	if out == nil || len(out) < n {
		return StatusNullOutput
	}

	results := make([]classifier.Classification, n)
	pool.Map(n, func(i int) {
		results[i] = c.Classify(queries[i])
	})
	copy(out, results)
	return StatusOK
}

// Destroy releases h. destroying the null handle is a logged no-op; the
// caller must not use h afterwards.
func Destroy(h Handle) {
	if h == 0 {
		logger.Warn("classifier is null; maybe it was freed previously")
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := handles[h]; !ok {
		logger.Warn("classifier handle already released", "handle", uint64(h))
		return
	}
	delete(handles, h)
}
