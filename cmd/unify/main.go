package main

import (
	"flag"

	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/unify"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "carsight-unify",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	carsPath := flag.String("cars", "./data/cars.json", "Path to the raw cars JSON file")
	mpgPath := flag.String("mpg", "./data/mpg.csv", "Path to the raw mpg CSV file")
	outPath := flag.String("out", "./data/unified_cars.csv", "Path for the unified CSV output")
	seed := flag.Int64("seed", 42, "Seed for simulated sale prices")
	flag.Parse()

	appLogger.WithFields(logger.Fields{
		"cars": *carsPath,
		"mpg":  *mpgPath,
		"out":  *outPath,
		"seed": *seed,
	}).Info("Starting dataset unification")

	count, err := unify.Run(*carsPath, *mpgPath, *outPath, *seed)
	if err != nil {
		appLogger.WithError(err).Fatal("Unification failed")
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldCount: count,
		"output":          *outPath,
	}).Info("Unification completed")
}
