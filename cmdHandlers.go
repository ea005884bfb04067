package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"dyss/boundary"
	"dyss/calibration"
	"dyss/classifier"
	"dyss/config"
	"dyss/db"
	"dyss/raw"
	"dyss/utils"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// tally keeps the running verdict counts of a session.
type tally struct {
	total        atomic.Int64
	accepted     atomic.Int64
	insufficient atomic.Int64
}

func (t *tally) add(classes ...classifier.Classification) {
	t.total.Add(int64(len(classes)))
	for _, c := range classes {
		switch c {
		case classifier.Accept:
			t.accepted.Add(1)
		case classifier.Insufficient:
			t.insufficient.Add(1)
		}
	}
}

func (t *tally) rejected() int64 {
	return t.total.Load() - t.accepted.Load() - t.insufficient.Load()
}

func (t *tally) summary() string {
	return fmt.Sprintf("result: (accepted,rejected,insufficient,total) = %s/%s/%s/%s",
		humanize.Comma(t.accepted.Load()), humanize.Comma(t.rejected()),
		humanize.Comma(t.insufficient.Load()), humanize.Comma(t.total.Load()))
}

// openClassifier loads the run configuration and constructs a classifier.
// the returned close func releases the handle and any database client.
func openClassifier(configPath string) (boundary.Handle, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return 0, nil, err
	}
	boundary.SetWorkers(cfg.Workers)

	opts := cfg.Options()
	var dbClient db.DBClient
	if cfg.CalibrationFromDB || cfg.CacheReferences {
		dbClient, err = db.NewDBClient()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create DB client: %v", err)
		}
		if cfg.CalibrationFromDB {
			opts.Calibration = dbClient
		}
		if cfg.CacheReferences {
			opts.Cache = dbClient
		}
	}

	start := time.Now()
	h := boundary.ConstructWith(opts)
	if !boundary.Live(h) {
		if dbClient != nil {
			dbClient.Close()
		}
		return 0, nil, fmt.Errorf("classifier could not be constructed")
	}
	c := boundary.Classifier(h)
	log.Printf("[construct] threshold=%.3f reference=%s samples, took %s",
		c.Threshold(), humanize.Comma(int64(c.ReferenceLen())), time.Since(start))

	closeFn := func() {
		boundary.Destroy(h)
		if dbClient != nil {
			dbClient.Close()
		}
	}
	return h, closeFn, nil
}

func printVerdict(id string, c classifier.Classification) {
	switch c {
	case classifier.Accept:
		color.Green("%s\taccept", id)
	case classifier.Insufficient:
		color.Yellow("%s\tinsufficient", id)
	default:
		color.Red("%s\treject", id)
	}
}

func classify(configPath string, paths []string, verbose bool) {
	h, closeFn, err := openClassifier(configPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer closeFn()

	var t tally
	c := boundary.Classifier(h)
	for _, p := range paths {
		reads, err := raw.ReadFile(p)
		if err != nil {
			fmt.Printf("error reading %s: %v\n", p, err)
			continue
		}
		for _, r := range reads {
			e := c.Explain(r.Samples)
			t.add(e.Class)
			printVerdict(r.ID, e.Class)
			if verbose {
				fmt.Printf("\tsamples=%d events=%d deduped=%d", e.Stats.Raw, e.Stats.Events, e.Stats.Deduped)
				if e.Matched {
					fmt.Printf(" score=%.4f start=%d strand=%s", e.Score, e.Start, e.Strand)
				} else if e.Abandoned {
					fmt.Printf(" abandoned (pruned %d/%d packs)", e.Search.Pruned, e.Search.Packs)
				}
				fmt.Println()
			}
		}
	}
	fmt.Println(t.summary())
}

func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var filePaths []string
	err = filepath.Walk(path, func(fp string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			filePaths = append(filePaths, fp)
		}
		return nil
	})
	return filePaths, err
}

func batch(configPath, path string, batchSize int) {
	if batchSize < 1 {
		batchSize = 1
	}
	filePaths, err := collectFiles(path)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}

	var reads []raw.Read
	for _, fp := range filePaths {
		rs, err := raw.ReadFile(fp)
		if err != nil {
			fmt.Printf("skipping %s: %v\n", fp, err)
			continue
		}
		reads = append(reads, rs...)
	}
	if len(reads) == 0 {
		fmt.Println("no reads found.")
		return
	}

	h, closeFn, err := openClassifier(configPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	defer closeFn()

	var t tally
	start := time.Now()
	for lo := 0; lo < len(reads); lo += batchSize {
		hi := min(lo+batchSize, len(reads))
		chunk := reads[lo:hi]

		data := make([][]int32, len(chunk))
		lengths := make([]int, len(chunk))
		for i, r := range chunk {
			data[i] = r.Samples
			lengths[i] = len(r.Samples)
		}
		out := make([]classifier.Classification, len(chunk))

		batchID := utils.GenerateRequestID()
		batchStart := time.Now()
		status := boundary.BatchClassify(h, data, lengths, len(chunk), out)
		if status != boundary.StatusOK {
			log.Printf("[batch %s] failed: %s", batchID, status)
			continue
		}
		log.Printf("[batch %s] %d reads in %s", batchID, len(chunk), time.Since(batchStart))

		t.add(out...)
		for i, r := range chunk {
			printVerdict(r.ID, out[i])
		}
	}

	fmt.Printf("\nclassified %s reads in %s\n", humanize.Comma(t.total.Load()), time.Since(start))
	fmt.Println(t.summary())
}

func lookup(tablePath string, refSize, power, packs, scouts int) {
	key := calibration.Key{RefSize: refSize, Power: power, NumPacks: packs, NumScouts: scouts}

	var src calibration.Source
	if tablePath != "" {
		table, err := calibration.Load(tablePath, nil)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		src = table
	} else {
		dbClient, err := db.NewDBClient()
		if err != nil {
			fmt.Printf("error creating DB client: %v\n", err)
			return
		}
		defer dbClient.Close()
		src = dbClient
	}

	row, ok, err := src.Lookup(key)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		color.Yellow("no calibration for refsize=%d power=%d packs=%d scouts=%d", refSize, power, packs, scouts)
		return
	}
	fmt.Printf("threshold: %g\nspecificity: %g\n", row.Threshold, row.Specificity)
}

func importCalibration(tablePath string) {
	table, err := calibration.Load(tablePath, nil)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	dbClient, err := db.NewDBClient()
	if err != nil {
		fmt.Printf("error creating DB client: %v\n", err)
		return
	}
	defer dbClient.Close()

	if err := dbClient.StoreCalibration(table.Rows); err != nil {
		fmt.Printf("error storing calibration: %v\n", err)
		return
	}
	total, _ := dbClient.TotalCalibrationRows()
	fmt.Printf("imported %s rows (%s in database)\n",
		humanize.Comma(int64(len(table.Rows))), humanize.Comma(int64(total)))
}

func erase(what string) {
	dbClient, err := db.NewDBClient()
	if err != nil {
		fmt.Printf("error creating DB client: %v\n", err)
		return
	}
	defer dbClient.Close()

	if what == "calibration" || what == "all" {
		if err := dbClient.DeleteCollection(db.CalibrationCollection); err != nil {
			fmt.Printf("error deleting calibration: %v\n", err)
		}
	}
	if what == "references" || what == "all" {
		if err := dbClient.DeleteCollection(db.ReferenceCollection); err != nil {
			fmt.Printf("error deleting references: %v\n", err)
		}
	}
	fmt.Println("erase complete")
}
