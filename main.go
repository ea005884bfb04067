package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dyss/boundary"
	"dyss/utils"

	"github.com/joho/godotenv"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	_ = godotenv.Load()
	setupLogging()

	switch os.Args[1] {
	case "classify":
		classifyCmd := flag.NewFlagSet("classify", flag.ExitOnError)
		configPath := classifyCmd.String("config", "", "YAML run configuration")
		verbose := classifyCmd.Bool("v", false, "print the matcher detail for each read")
		classifyCmd.Parse(os.Args[2:])
		if classifyCmd.NArg() < 1 {
			fmt.Println("usage: dyss classify [-config dyss.yaml] [-v] <raw_file>...")
			os.Exit(1)
		}
		classify(*configPath, classifyCmd.Args(), *verbose)

	case "batch":
		batchCmd := flag.NewFlagSet("batch", flag.ExitOnError)
		configPath := batchCmd.String("config", "", "YAML run configuration")
		batchSize := batchCmd.Int("n", 30, "reads per batch_classify call")
		batchCmd.Parse(os.Args[2:])
		if batchCmd.NArg() < 1 {
			fmt.Println("usage: dyss batch [-config dyss.yaml] [-n 30] <file_or_dir>")
			os.Exit(1)
		}
		batch(*configPath, batchCmd.Arg(0), *batchSize)

	case "lookup":
		lookupCmd := flag.NewFlagSet("lookup", flag.ExitOnError)
		table := lookupCmd.String("calibration", "", "calibration CSV (default: database)")
		refSize := lookupCmd.Int("refsize", 200000, "reference size in samples")
		power := lookupCmd.Int("power", 9, "dedup power (percent)")
		packs := lookupCmd.Int("packs", 3, "number of packs")
		scouts := lookupCmd.Int("scouts", 14, "number of scouts")
		lookupCmd.Parse(os.Args[2:])
		lookup(*table, *refSize, *power, *packs, *scouts)

	case "calibrate":
		if len(os.Args) < 3 {
			fmt.Println("usage: dyss calibrate <parameters.csv>")
			os.Exit(1)
		}
		importCalibration(os.Args[2])

	case "erase":
		what := "all"
		if len(os.Args) > 2 {
			what = os.Args[2]
		}
		switch what {
		case "calibration", "references", "all":
		default:
			fmt.Println("usage: dyss erase [calibration | references | all]")
			os.Exit(1)
		}
		erase(what)

	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		configPath := serveCmd.String("config", "", "YAML run configuration")
		port := serveCmd.String("p", "5000", "port to use")
		serveCmd.Parse(os.Args[2:])
		serve(*configPath, *port)

	default:
		printUsage()
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(utils.GetEnv("DYSS_LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	boundary.SetLogger(logger)
}

func printUsage() {
	fmt.Println("usage: dyss <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  classify [-config f] [-v] <raw>...     classify reads one by one")
	fmt.Println("  batch    [-config f] [-n 30] <path>     classify a file or directory in parallel batches")
	fmt.Println("  lookup   [-calibration csv] [...]       show the calibrated threshold for a setup")
	fmt.Println("  calibrate <parameters.csv>              import a calibration table into the database")
	fmt.Println("  erase    [calibration|references|all]   clear the database")
	fmt.Println("  serve    [-config f] [-p 5000]          start the HTTP API")
}
