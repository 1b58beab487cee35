package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/railscan/polemap/internal/api"
	"github.com/railscan/polemap/internal/dataset"
	"github.com/railscan/polemap/internal/ingest"
	"github.com/railscan/polemap/internal/store"
)

type cli struct {
	Serve serveCmd `cmd:"" default:"withargs" help:"Run the review server."`
	Check checkCmd `cmd:"" help:"Decode and validate a dataset file, then exit."`
}

type serveCmd struct {
	DB       string `name:"db" default:"data/polemap.db" env:"POLEMAP_DB" help:"Path to the SQLite registry database."`
	Port     string `name:"port" default:"8080" env:"POLEMAP_PORT" help:"HTTP listen port."`
	Timezone string `name:"timezone" default:"UTC" env:"POLEMAP_TZ" help:"Timezone for zoneless dataset timestamps."`

	ImageBaseURL string `name:"image-base-url" env:"POLEMAP_IMAGE_BASE_URL" help:"Rig image archive host, e.g. http://10.10.10.100:8173."`
	Camera       string `name:"camera" default:"FWD" env:"POLEMAP_CAMERA" help:"Camera name in archive paths."`
	Rig          string `name:"rig" default:"rig-front-uf" env:"POLEMAP_RIG" help:"Rig name in archive paths."`

	Load string `name:"load" type:"existingfile" optional:"" help:"Dataset file to load at startup."`

	FTPHost     string        `name:"ftp-host" env:"POLEMAP_FTP_HOST" help:"FTP drop host:port; enables polling when set."`
	FTPUser     string        `name:"ftp-user" env:"POLEMAP_FTP_USER" help:"FTP user (anonymous when empty)."`
	FTPPassword string        `name:"ftp-password" env:"POLEMAP_FTP_PASSWORD" help:"FTP password."`
	FTPPath     string        `name:"ftp-path" default:"/" env:"POLEMAP_FTP_PATH" help:"Directory on the drop to watch."`
	FTPInterval time.Duration `name:"ftp-interval" default:"5m" env:"POLEMAP_FTP_INTERVAL" help:"Poll interval."`
}

type checkCmd struct {
	File     string `arg:"" type:"existingfile" help:"Dataset file (.csv, .parquet, optionally .gz)."`
	Timezone string `name:"timezone" default:"UTC" help:"Timezone for zoneless dataset timestamps."`
}

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Warning: could not load %s timezone, using UTC: %v", name, err)
		return time.UTC
	}
	return loc
}

func (c *serveCmd) Run() error {
	db, err := sql.Open("sqlite", c.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Println("database migrated")

	server := api.NewServer(st, api.Config{
		Port:         c.Port,
		ImageBaseURL: c.ImageBaseURL,
		Camera:       c.Camera,
		Rig:          c.Rig,
		Loc:          loadLocation(c.Timezone),
	})

	if c.Load != "" {
		data, err := os.ReadFile(c.Load)
		if err != nil {
			return fmt.Errorf("read %s: %w", c.Load, err)
		}
		summary, err := server.LoadDataset(c.Load, data, "startup")
		if err != nil {
			return fmt.Errorf("load %s: %w", c.Load, err)
		}
		log.Printf("loaded %s: %d rows (%s variant)", c.Load, summary.Rows, summary.Variant)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if c.FTPHost != "" {
		drop := ingest.NewDropClient(ingest.DropConfig{
			Host:     c.FTPHost,
			User:     c.FTPUser,
			Password: c.FTPPassword,
			Path:     c.FTPPath,
		})
		poller := ingest.NewPoller(drop, st, c.FTPInterval, func(name string, data []byte) error {
			_, err := server.LoadDataset(name, data, "ftp")
			return err
		})
		go poller.Run(ctx)
		log.Printf("watching ftp drop %s%s every %s", c.FTPHost, c.FTPPath, c.FTPInterval)
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

func (c *checkCmd) Run() error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.File, err)
	}

	ds, cellErrs, err := dataset.Load(c.File, data, loadLocation(c.Timezone))
	if err != nil {
		return err
	}

	fmt.Printf("%s: %s variant, %d rows\n", c.File, ds.Variant, len(ds.Rows))
	if cellErrs.Total() > 0 {
		fmt.Printf("%d unparseable cells:\n", cellErrs.Total())
		for _, col := range cellErrs.Columns() {
			fmt.Printf("  %-24s %d\n", col, cellErrs.Counts[col])
		}
	}
	suspect := 0
	for i := range ds.Rows {
		if ds.Rows[i].CoordsSuspect {
			suspect++
		}
	}
	if suspect > 0 {
		fmt.Printf("%d rows with suspect coordinates\n", suspect)
	}
	return nil
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("polemap"),
		kong.Description("Review server for geo-referenced rail pole survey measurements."),
		kong.UsageOnError(),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	if err := ctx.Run(); err != nil {
		log.Fatal(err)
	}
}
