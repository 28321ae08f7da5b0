package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"schemamapper/analyzer"
	"schemamapper/evaluator"
	"schemamapper/preprocessing"
	"schemamapper/schema"
)

// Офлайн-прогон локального анализа: читает табличный файл и печатает
// рекомендации маппинга без LLM и базы знаний
func main() {
	var showScores bool
	flag.BoolVar(&showScores, "scores", false, "print per-type final scores for every column")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-scores] <file.csv|file.xlsx>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	path := flag.Arg(0)

	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", path, err)
	}
	defer file.Close()

	dataset, err := preprocessing.ReadDataset(filepath.Base(path), file)
	if err != nil {
		log.Fatalf("Failed to read dataset: %v", err)
	}

	metadata, err := preprocessing.NewPreprocessor().Process(dataset)
	if err != nil {
		log.Fatalf("Failed to preprocess: %v", err)
	}

	localAnalyzer, err := analyzer.NewLocalAnalyzer(nil)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}
	confidenceEvaluator, err := evaluator.NewEvaluator(nil)
	if err != nil {
		log.Fatalf("Failed to create evaluator: %v", err)
	}

	analyses, err := localAnalyzer.AnalyzeFile(metadata)
	if err != nil {
		log.Fatalf("Failed to analyze: %v", err)
	}
	strategy := confidenceEvaluator.EvaluateFile(analyses)

	fmt.Printf("File: %s (%d rows, %d columns)\n\n", metadata.FileName, metadata.RowCount, metadata.ColumnCount)
	fmt.Printf("%-30s %-16s %-10s %-12s %s\n", "COLUMN", "RECOMMENDED", "SCORE", "CATEGORY", "ACTION")
	fmt.Println(strings.Repeat("-", 90))

	for _, decision := range strategy.Decisions {
		recommended := string(decision.Analysis.RecommendedType)
		if recommended == "" {
			recommended = "-"
		}
		fmt.Printf("%-30s %-16s %-10.2f %-12s %s\n",
			truncate(decision.OriginalHeader, 30),
			recommended,
			decision.Analysis.RecommendedConfidence,
			decision.Category,
			decision.Action,
		)

		if showScores {
			printScores(decision.Analysis.FinalScores)
		}
	}

	fmt.Println()
	if len(strategy.ImmediateAnalytics) > 0 {
		fmt.Printf("Immediately feasible analytics: %s\n", strings.Join(strategy.ImmediateAnalytics, ", "))
	}
	if len(strategy.PotentialAnalytics) > 0 {
		fmt.Printf("Feasible after confirmation:    %s\n", strings.Join(strategy.PotentialAnalytics, ", "))
	}
}

func printScores(scores map[schema.CanonicalType]float64) {
	for _, canonical := range schema.AllTypes() {
		score, ok := scores[canonical]
		if !ok || score == 0 {
			continue
		}
		fmt.Printf("    %-26s %.3f\n", canonical, score)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
