// Command parzip lists or extracts a ZIP archive, decompressing entries
// in parallel.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"parzip"
)

func main() {
	var (
		directory = flag.String("C", "", "change to this directory before extracting")
		dryRun    = flag.Bool("n", false, "print the archive's file tree instead of extracting")
		verbose   = flag.Bool("v", false, "enable debug logging")
		workers   = flag.Int("workers", 0, "extraction workers (0 = number of CPUs)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.zip\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(flag.Arg(0), *directory, *dryRun, *workers, logger); err != nil {
		logger.Error("parzip failed", "error", err)
		os.Exit(1)
	}
}

func run(zipPath, directory string, dryRun bool, workers int, logger *slog.Logger) error {
	data, err := os.ReadFile(zipPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", zipPath, err)
	}

	archive, err := parzip.NewArchive(data, parzip.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", zipPath, err)
	}
	logger.Debug("archive parsed",
		"entries", archive.Len(),
		"prefix_offset", archive.PrefixOffset())

	tree, err := archive.Tree()
	if err != nil {
		return fmt.Errorf("building file tree: %w", err)
	}

	if dryRun {
		for path, node := range tree.Walk() {
			if node.IsDir() {
				fmt.Println(path + "/")
			} else {
				fmt.Println(path)
			}
		}
		return nil
	}

	dest := "."
	if directory != "" {
		dest = directory
	}
	return archive.Extract(dest,
		parzip.ExtractWithWorkers(workers),
		parzip.ExtractWithModTimes(true))
}
