package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"photolabels/internal/config"
	"photolabels/internal/labels"
	"photolabels/internal/logger"
	"photolabels/internal/models"
	"photolabels/internal/service/ai"
	"photolabels/internal/service/cycle"
	"photolabels/internal/service/inference"
)

type reportChannel chan models.CycleReport

func (c reportChannel) Present(report models.CycleReport) {
	c <- report
}

func main() {
	imagePath := flag.String("image", "", "Photo to label")
	annotate := flag.String("annotate", "", "Write the photo with detection boxes to this path")
	verbose := flag.Bool("v", false, "Log to LOG_DIR as the server does")
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	ok, err := run(*imagePath, *annotate, *verbose)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

// run labels one photo. It reports false when the cycle failed.
func run(imagePath, annotatePath string, verbose bool) (bool, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return false, fmt.Errorf("failed to read image: %w", err)
	}

	cfg := config.Load()
	lg := logger.NewDiscard()
	if verbose {
		lg = logger.NewLogger(cfg)
	}

	table, err := labels.Load(cfg.LabelsPath)
	if err != nil {
		return false, fmt.Errorf("failed to load labels: %w", err)
	}

	detector := ai.NewDetectorService(cfg, table, lg)
	defer detector.Close()
	if !detector.Ready() {
		lg.Warning("⚠️  Detection network not loaded from %s", cfg.ModelPath)
	}

	pool := inference.NewPool([]inference.Detector{detector}, 1, lg)
	defer pool.Stop()

	// Annotation reuses the cycle's observations instead of detecting twice.
	recorder := inference.NewRecorder(pool)
	reports := make(reportChannel, 1)
	controller := cycle.New(recorder, reports, cycle.WithLogger(lg))
	defer controller.Close()

	if _, err := controller.Select(context.Background(), img); err != nil {
		return false, fmt.Errorf("failed to start detection: %w", err)
	}
	report := <-reports

	if report.Failed {
		fmt.Println("Unable to create image")
		fmt.Fprintf(os.Stderr, "%s failure: %s\n", report.Failure, report.Error)
		return false, nil
	}
	if len(report.Results) == 0 {
		fmt.Println("No results found")
	}
	for _, result := range report.Results {
		fmt.Println(result.String())
	}

	if annotatePath != "" {
		annotated, err := detector.DrawObservations(recorder.Last(), img)
		if err != nil {
			return true, fmt.Errorf("failed to annotate image: %w", err)
		}
		if err := os.WriteFile(annotatePath, annotated, 0644); err != nil {
			return true, fmt.Errorf("failed to write annotated image: %w", err)
		}
		fmt.Printf("✅ Annotated image written to %s\n", annotatePath)
	}
	return true, nil
}
