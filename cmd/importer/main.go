// Command importer converts a venue seat-map drawing into a stored layout
// template.
//
//	importer -file venue.html -name "Main hall" -tenant 7 -w 1200 -h 800
//
// With -dry-run it only prints the parse statistics and the geometry.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/iliyamo/seat-inventory/internal/config"
	"github.com/iliyamo/seat-inventory/internal/database"
	"github.com/iliyamo/seat-inventory/internal/logger"
	"github.com/iliyamo/seat-inventory/internal/repository"
	"github.com/iliyamo/seat-inventory/internal/service"
	"github.com/iliyamo/seat-inventory/internal/tenant"
)

func main() {
	file := flag.String("file", "", "path to the HTML/SVG seat map")
	name := flag.String("name", "", "layout name")
	tid := flag.Uint64("tenant", 0, "owning tenant id")
	width := flag.Float64("w", 0, "target canvas width (0 keeps source coordinates)")
	height := flag.Float64("h", 0, "target canvas height")
	dryRun := flag.Bool("dry-run", false, "parse and print without storing")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New(os.Getenv("APP_ENV"))
	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: importer -file venue.html -name NAME -tenant ID [-w W -h H] [-dry-run]")
		os.Exit(2)
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Error("read input", "file", *file, "error", err)
		os.Exit(1)
	}

	layout, stats, err := service.BuildLayout(*name, string(raw), *width, *height)
	if err != nil {
		log.Error("import failed", "error", err, "sections", stats.Sections, "seats", stats.Seats)
		os.Exit(1)
	}
	log.Info("parsed", "sections", stats.Sections, "seats", stats.Seats, "unassigned", stats.Unassigned, "categories", stats.CategoryIDs)

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(layout.Geometry)
		return
	}
	if *tid == 0 {
		log.Error("-tenant is required unless -dry-run is set")
		os.Exit(2)
	}

	cfg := config.Load()
	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := tenant.WithID(context.Background(), tenant.ID(*tid))
	if err := database.Migrate(ctx, db); err != nil {
		log.Error("migrate", "error", err)
		os.Exit(1)
	}
	id, err := repository.NewLayoutRepo(db).CreateLayout(ctx, layout)
	if err != nil {
		log.Error("store layout", "error", err)
		os.Exit(1)
	}
	fmt.Println(id)
}
