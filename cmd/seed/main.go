package main

import (
	"context"
	"log"
	"os"

	"chocolate-storefront/internal/config"
	"chocolate-storefront/internal/db"
	productrepo "chocolate-storefront/internal/repository/product"
	shippingrepo "chocolate-storefront/internal/repository/shipping"
	"chocolate-storefront/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := seed.Apply(ctx, productrepo.NewPostgres(pool, logger), shippingrepo.NewPostgres(pool)); err != nil {
		logger.Fatalf("seed apply: %v", err)
	}

	logger.Println("seed applied")
}
