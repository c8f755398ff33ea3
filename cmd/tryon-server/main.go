package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/banshee-data/tryon/internal/api"
	"github.com/banshee-data/tryon/internal/catalog"
	"github.com/banshee-data/tryon/internal/config"
	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/httputil"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/tryon/assets"
	"github.com/banshee-data/tryon/internal/tryon/pipeline"
	"github.com/banshee-data/tryon/internal/tryon/recorder"
	"github.com/banshee-data/tryon/internal/tryon/stream"
	"github.com/banshee-data/tryon/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address (TRYON_LISTEN when not given)")
	envFile     = flag.String("env", ".env", "Environment file with credentials (optional)")
	dbPath      = flag.String("db", "tryon.db", "SQLite database for session recording (empty disables recording)")
	catalogKind = flag.String("catalog", "dir", "Asset catalog backend: dir or s3")
	assetsDir   = flag.String("assets-dir", "assets", "Asset directory for the dir catalog; also served under /assets/")
	assetsURL   = flag.String("assets-url", "/assets", "Base URL the dir catalog puts in item sources")
	tuningPath  = flag.String("tuning", "", "Tuning JSON file (defaults when empty)")
	label       = flag.String("label", "", "Label stored with the recorded session")
	corsOrigin  = flag.String("cors-origin", "*", "Access-Control-Allow-Origin value")
	reqRate     = flag.Float64("rate", 120, "Per-client request rate limit in requests/second (0 disables)")
	logLevel    = flag.String("log-level", "info", "Log level")
	logFile     = flag.String("log-file", "", "Rotating log file in addition to stderr")
	grpcListen  = flag.String("grpc-listen", "", "Listen address for the gRPC frame stream (empty disables)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println("tryon-server", version.String())
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading %s: %v", *envFile, err)
	}

	logger, err := monitoring.NewLogger(monitoring.LoggerOptions{Level: *logLevel, File: *logFile})
	if err != nil {
		log.Fatal(err)
	}
	monitoring.UseLogrus(logger)

	if v := os.Getenv("TRYON_LISTEN"); v != "" && !flagSet("listen") {
		*listen = v
	}

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "migrate":
			db.RunMigrateCommand(flag.Args()[1:], *dbPath)
			return
		case "help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", flag.Arg(0))
			printUsage()
			os.Exit(1)
		}
	}

	if *listen == "" {
		logger.Fatal("Listen address is required")
	}

	cfg := pipeline.DefaultConfig()
	if *tuningPath != "" {
		tuning, err := config.LoadTuningConfig(*tuningPath)
		if err != nil {
			logger.Fatalf("Failed to load tuning: %v", err)
		}
		if cfg, err = pipeline.ConfigFromTuning(tuning); err != nil {
			logger.Fatalf("Failed to apply tuning: %v", err)
		}
	}

	cat, err := newCatalog()
	if err != nil {
		logger.Fatalf("Failed to configure asset catalog: %v", err)
	}

	sess := pipeline.NewSession(cfg, nil)
	opts := api.Options{
		Catalog: cat,
		Loader:  newLoader(),
	}

	var database *db.DB
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()

		rec, err := recorder.Start(database, sess, *label, 0, 0)
		if err != nil {
			logger.Fatalf("Failed to start session recording: %v", err)
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Errorf("session recording: %v", err)
			}
		}()
		sess.AddObserver(rec)
		opts.DB = database
		opts.Recorder = rec
	}

	if *grpcListen != "" {
		pub := stream.NewPublisher()
		if err := pub.Start(*grpcListen); err != nil {
			logger.Fatalf("Failed to start frame stream: %v", err)
		}
		defer pub.Stop()
		sess.AddObserver(pub)
	}

	srv := api.NewServer(sess, opts)
	mux := srv.ServeMux()
	if database != nil {
		if err := database.AttachAdminRoutes(mux); err != nil {
			logger.Fatalf("Failed to attach admin routes: %v", err)
		}
	}
	if *catalogKind == "dir" {
		mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.Dir(*assetsDir))))
	}

	var handler http.Handler = mux
	if *reqRate > 0 {
		handler = api.NewRateLimiter(rate.Limit(*reqRate), int(*reqRate)*2).Middleware(handler)
	}
	handler = api.CORSMiddleware(*corsOrigin, handler)
	handler = api.LoggingMiddleware(handler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serve(ctx, logger, handler)
	}()

	logger.Infof("tryon-server %s: session %s listening on %s", version.Version, sess.ID(), *listen)
	wg.Wait()
	logger.Info("Graceful shutdown complete")
}

func serve(ctx context.Context, logger *logrus.Logger, handler http.Handler) {
	server := &http.Server{
		Addr:              *listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			logger.Errorf("HTTP server force close error: %v", err)
		}
	}
}

func newCatalog() (catalog.Catalog, error) {
	switch *catalogKind {
	case "dir":
		return catalog.NewDirCatalog(*assetsDir, *assetsURL), nil
	case "s3":
		return catalog.NewS3Catalog(catalog.S3ConfigFromEnv())
	default:
		return nil, fmt.Errorf("unknown catalog %q (want dir or s3)", *catalogKind)
	}
}

// newLoader confines local asset paths to the asset directory and maps
// catalog sources under -assets-url back onto it. Remote sources are
// fetched over HTTP.
func newLoader() *assets.Loader {
	l := assets.NewLoader(httputil.NewStandardClient(15 * time.Second))
	if *catalogKind == "dir" {
		l.Root = *assetsDir
		if strings.HasPrefix(*assetsURL, "/") {
			l.Prefix = *assetsURL
		}
	}
	return l
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `tryon-server - jewelry try-on overlay service

Usage:
  tryon-server [flags]                 run the HTTP API
  tryon-server [flags] migrate <cmd>   manage the session database schema

Flags:
`)
	flag.PrintDefaults()
}
