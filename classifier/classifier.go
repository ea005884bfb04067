// Package classifier decides, from the first few hundred events of a
// read, whether it comes from the reference: Accept, Reject, or
// Insufficient when there is not yet enough signal.
package classifier

import (
	"errors"
	"log/slog"
	"strconv"

	"dyss/calibration"
	"dyss/dtw"
	"dyss/preprocess"
	"dyss/squiggle"

	"github.com/mdobak/go-xerrors"
)

// ErrConfig marks invalid construction options.
var ErrConfig = xerrors.Message("classifier: invalid options")

// Classification is the verdict for one read.
type Classification int32

const (
	Reject       Classification = 0
	Accept       Classification = 1
	Insufficient Classification = 2
)

func (c Classification) String() string {
	switch c {
	case Reject:
		return "reject"
	case Accept:
		return "accept"
	case Insufficient:
		return "insufficient"
	}
	return "classification(" + strconv.Itoa(int(c)) + ")"
}

// Options carries everything needed to construct a Classifier.
type Options struct {
	NumScouts       int
	NumPacks        int
	ReferencePath   string
	ModelPath       string
	CalibrationPath string
	Power           int // dedup power as a percentage
	QuerySize       int // events compared against the reference
	ReferenceSize   int // combined template+complement budget, in samples

	// Calibration overrides CalibrationPath when set.
	Calibration calibration.Source
	// Cache, when set, stores synthesized references between runs.
	Cache squiggle.Cache
	// Preprocess defaults to preprocess.DefaultConfig().
	Preprocess *preprocess.Config
	Logger     *slog.Logger
}

// Classifier is immutable after New and safe for concurrent use.
type Classifier struct {
	threshold   float32
	specificity float32
	numScouts   int
	numPacks    int
	querySize   int
	power       float32
	reference   squiggle.Reference
	pre         preprocess.Config
	logger      *slog.Logger
}

// New looks up the calibrated threshold and builds the reference. any
// failure aborts construction; there is no partially built Classifier.
func New(opts Options) (*Classifier, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pre := preprocess.DefaultConfig()
	if opts.Preprocess != nil {
		pre = *opts.Preprocess
	}
	if !pre.Validate() {
		return nil, xerrors.New(ErrConfig, "preprocess config")
	}
	if opts.QuerySize <= 0 || opts.NumScouts < 0 || opts.NumPacks < 0 || opts.Power < 0 {
		return nil, xerrors.New(ErrConfig, "sizes and counts must be positive")
	}

	src := opts.Calibration
	if src == nil {
		if opts.CalibrationPath == "" {
			return nil, xerrors.New(ErrConfig, "no calibration table")
		}
		table, err := calibration.Load(opts.CalibrationPath, logger)
		if err != nil {
			return nil, err
		}
		src = table
	}
	key := calibration.Key{
		RefSize:   opts.ReferenceSize,
		Power:     opts.Power,
		NumPacks:  opts.NumPacks,
		NumScouts: opts.NumScouts,
	}
	row, ok, err := src.Lookup(key)
	if err != nil {
		return nil, xerrors.New("classifier: calibration lookup", err)
	}
	if !ok {
		return nil, xerrors.New(calibration.ErrNoRow, keyString(key))
	}
	logger.Info("calibration",
		"refsize", key.RefSize, "power", key.Power,
		"packs", key.NumPacks, "scouts", key.NumScouts,
		"threshold", row.Threshold)

	b := &squiggle.Builder{Cache: opts.Cache, Logger: logger}
	ref, err := b.Build(opts.ReferencePath, opts.ModelPath, opts.ReferenceSize)
	if err != nil {
		return nil, err
	}
	if len(ref.Trace) == 0 {
		return nil, xerrors.New(squiggle.ErrReference, "empty trace")
	}
	logger.Info("reference", "len", len(ref.Trace))

	return &Classifier{
		threshold:   row.Threshold,
		specificity: row.Specificity,
		numScouts:   opts.NumScouts,
		numPacks:    opts.NumPacks,
		querySize:   opts.QuerySize,
		power:       float32(opts.Power) / 100,
		reference:   ref,
		pre:         pre,
		logger:      logger,
	}, nil
}

// NewWithReference builds a Classifier from an already known threshold
// and reference trace, skipping calibration and synthesis.
func NewWithReference(threshold float32, numScouts, numPacks, querySize int, power float32, ref squiggle.Reference, pre preprocess.Config, logger *slog.Logger) (*Classifier, error) {
	if len(ref.Trace) == 0 {
		return nil, xerrors.New(squiggle.ErrReference, "empty trace")
	}
	if querySize <= 0 || !pre.Validate() {
		return nil, ErrConfig
	}
	if logger == nil {
		logger = slog.Default()
	}
	trace := append([]float32(nil), ref.Trace...)
	return &Classifier{
		threshold: threshold,
		numScouts: numScouts,
		numPacks:  numPacks,
		querySize: querySize,
		power:     power,
		reference: squiggle.Reference{Trace: trace, TemplateLen: ref.TemplateLen},
		pre:       pre,
		logger:    logger,
	}, nil
}

func keyString(k calibration.Key) string {
	return "refsize=" + strconv.Itoa(k.RefSize) +
		" power=" + strconv.Itoa(k.Power) +
		" packs=" + strconv.Itoa(k.NumPacks) +
		" scouts=" + strconv.Itoa(k.NumScouts)
}

func (c *Classifier) Threshold() float32   { return c.threshold }
func (c *Classifier) Specificity() float32 { return c.specificity }
func (c *Classifier) QuerySize() int       { return c.querySize }
func (c *Classifier) ReferenceLen() int    { return len(c.reference.Trace) }

// Explanation is a verdict plus what led to it.
type Explanation struct {
	Class     Classification
	Stats     preprocess.Stats
	Search    dtw.Stats // matcher work; zero when a length gate stopped the query
	Matched   bool      // the matcher reported a hit (possibly at the threshold)
	Score     float32
	Start     int
	Strand    squiggle.Strand
	Abandoned bool // the matcher pruned or abandoned every pack
}

// Classify returns the verdict for one raw read. it never retains query.
func (c *Classifier) Classify(query []int32) Classification {
	return c.Explain(query).Class
}

// Explain classifies query and reports the detail behind the verdict.
// it distinguishes a matcher miss from a hit scoring at or over the
// threshold, which Classify reports identically as Reject.
func (c *Classifier) Explain(query []int32) Explanation {
	window, st, ok := preprocess.Run(query, c.querySize, c.power, c.pre)
	e := Explanation{Stats: st}
	if !ok {
		if st.Events >= c.querySize {
			c.logger.Debug("query chunked", "raw", st.Raw, "deduped", st.Deduped)
		}
		e.Class = Insufficient
		return e
	}

	hit, search, err := dtw.Match(window, c.reference.Trace, dtw.Hill, c.numScouts, c.numPacks, c.threshold)
	e.Search = search
	c.logger.Debug("search", "packs", search.Packs, "pruned", search.Pruned,
		"abandoned", search.Abandoned, "completed", search.Completed)
	if err != nil {
		if !errors.Is(err, dtw.ErrNoMatch) {
			c.logger.Error("matcher failed", "err", err)
		}
		e.Abandoned = true
		e.Class = Reject
		return e
	}
	c.logger.Debug("score", "score", hit.Score, "start", hit.Start)

	e.Matched = true
	e.Score = hit.Score
	e.Start = hit.Start
	e.Strand = c.reference.Strand(hit.Start)
	if hit.Score < c.threshold {
		e.Class = Accept
	} else {
		e.Class = Reject
	}
	return e
}
