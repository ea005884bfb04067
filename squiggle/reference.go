package squiggle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/mdobak/go-xerrors"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// Reference is the classifier's target: the template trace followed by
// the complement trace.
type Reference struct {
	Trace       []float32 `msgpack:"trace" bson:"trace"`
	TemplateLen int       `msgpack:"template_len" bson:"template_len"`
}

// Strand reports which half of the reference index i falls in.
func (r Reference) Strand(i int) Strand {
	if i < r.TemplateLen {
		return Template
	}
	return Complement
}

// Strand names one of the two reference strands.
type Strand int

const (
	Template Strand = iota
	Complement
)

func (s Strand) String() string {
	if s == Template {
		return "template"
	}
	return "complement"
}

// Cache stores synthesized references between runs.
type Cache interface {
	GetReference(key string) (Reference, bool, error)
	StoreReference(key string, ref Reference) error
}

// Builder assembles references. the zero value is usable.
type Builder struct {
	Cache  Cache
	Logger *slog.Logger
}

// Build loads the k-mer model at modelPath and the first record of the
// FASTA at refPath, then synthesizes template and complement traces.
// refSize is the combined size budget of both strands.
func (b *Builder) Build(refPath, modelPath string, refSize int) (Reference, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	modelData, err := os.ReadFile(modelPath)
	if err != nil {
		return Reference{}, xerrors.New(ErrModel, err)
	}
	refData, err := os.ReadFile(refPath)
	if err != nil {
		return Reference{}, xerrors.New(ErrReference, err)
	}

	key := CacheKey(modelData, refData, refSize)
	if b.Cache != nil {
		ref, ok, err := b.Cache.GetReference(key)
		switch {
		case err != nil:
			logger.Warn("reference cache read failed", "key", key, "err", err)
		case ok && len(ref.Trace) > 0:
			logger.Info("reference loaded from cache", "key", key, "len", len(ref.Trace))
			return ref, nil
		}
	}

	model, err := ParseModel(bytes.NewReader(modelData))
	if err != nil {
		return Reference{}, err
	}
	seq, err := ParseFasta(bytes.NewReader(refData))
	if err != nil {
		return Reference{}, err
	}
	template, complement := TemplateComplement(seq, refSize)

	var temp, rev []float32
	var g errgroup.Group
	g.Go(func() error {
		temp = model.Synthesize(template)
		if len(temp) == 0 {
			return xerrors.New(ErrReference, fmt.Sprintf("template of %d bases yields no %d-mers", len(template), model.K))
		}
		return nil
	})
	g.Go(func() error {
		rev = model.Synthesize(complement)
		if len(rev) == 0 {
			return xerrors.New(ErrReference, fmt.Sprintf("complement of %d bases yields no %d-mers", len(complement), model.K))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Reference{}, err
	}

	ref := Reference{
		Trace:       append(temp, rev...),
		TemplateLen: len(temp),
	}
	logger.Info("reference built", "len", len(ref.Trace), "template", ref.TemplateLen, "k", model.K)

	if b.Cache != nil {
		if err := b.Cache.StoreReference(key, ref); err != nil {
			logger.Warn("reference cache write failed", "key", key, "err", err)
		}
	}
	return ref, nil
}

// CacheKey identifies a reference by the exact model and sequence bytes
// and the size budget.
func CacheKey(modelData, refData []byte, refSize int) string {
	h := xxh3.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(modelData)))
	_, _ = h.Write(buf[:])
	_, _ = h.Write(modelData)
	_, _ = h.Write(refData)
	binary.LittleEndian.PutUint64(buf[:], uint64(refSize))
	_, _ = h.Write(buf[:])
	return fmt.Sprintf("%016x", h.Sum64())
}
