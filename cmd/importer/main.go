package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"chocolate-storefront/internal/config"
	"chocolate-storefront/internal/db"
	"chocolate-storefront/internal/importer"
	"chocolate-storefront/internal/repository/product"
)

func main() {
	var (
		filePath string
		currency string
	)
	flag.StringVar(&filePath, "file", "", "Path to the catalog CSV")
	flag.StringVar(&currency, "currency", "TRY", "Currency for rows that leave it blank")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger := log.New(os.Stderr, "[importer] ", log.LstdFlags|log.LUTC)
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatalf("open file: %v", err)
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, product.NewPostgres(pool, logger), currency)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatalf("import failed: %v", err)
	}

	fmt.Printf("Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
}
