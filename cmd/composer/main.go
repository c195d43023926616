// Package main is composer's CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/compresr/composer/internal/adapters"
	"github.com/compresr/composer/internal/config"
	"github.com/compresr/composer/internal/devserver"
	"github.com/compresr/composer/internal/graph"
	"github.com/compresr/composer/internal/html"
	"github.com/compresr/composer/internal/loader"
	"github.com/compresr/composer/internal/monitoring"
	"github.com/compresr/composer/internal/parse"
	"github.com/compresr/composer/internal/render"
	"github.com/compresr/composer/internal/resource"
	"github.com/compresr/composer/internal/store"
)

const (
	composerGreen = "\033[38;2;23;128;68m" // #178044
	bold          = "\033[1m"
	reset         = "\033[0m"
)

const banner = `
  ██████╗ ██████╗ ███╗  ███╗██████╗  ██████╗ ███████╗███████╗██████╗
 ██╔════╝██╔═══██╗████╗ ████║██╔══██╗██╔═══██╗██╔════╝██╔════╝██╔══██╗
 ██║     ██║   ██║██╔████╔██║██████╔╝██║   ██║███████╗█████╗  ██████╔╝
 ██║     ██║   ██║██║╚██╔╝██║██╔═══╝ ██║   ██║╚════██║██╔══╝  ██╔══██╗
 ╚██████╗╚██████╔╝██║ ╚═╝ ██║██║     ╚██████╔╝███████║███████╗██║  ██║
  ╚═════╝ ╚═════╝ ╚═╝     ╚═╝╚═╝      ╚═════╝ ╚══════╝╚══════╝╚═╝  ╚═╝
`

func printBanner() {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Print(composerGreen + bold + banner + reset + "\n")
	}
}

// loadEnvFiles loads .env from ~/.config/composer/.env then the local
// directory — same two-location order the teacher's CLI uses. godotenv.Load
// never overrides a variable that is already set, so a value from the
// ~/.config file wins over the local file, and the process environment
// wins over both.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}
	configEnv := filepath.Join(homeDir, ".config", "composer", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}
	_ = godotenv.Load()
}

func main() {
	loadEnvFiles()

	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "cache":
		runCache(os.Args[2:])
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Println("composer dev")
}

func printHelp() {
	printBanner()
	fmt.Println(`Usage: composer <command> [flags]

Commands:
  build              Build a document graph to static HTML
  serve              Build, serve, and live-reload on markdown changes
  cache gc           Remove expired llm_cache entries
  cache inspect      Print the cache database path (table contents are not listed)
  version            Print the version
  help               Show this help`)
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", "composer.yaml", "path to configuration file")
	rootPath := fs.String("root", "index.md", "root document to build")
	outDir := fs.String("out", "dist", "output directory")
	fs.Parse(args)

	printBanner()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "composer: %v\n", err)
		os.Exit(1)
	}
	monitoring.Global(monitoring.LoggerConfig{Level: "info"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(cfg.Cache.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("opening cache store")
		os.Exit(1)
	}
	defer s.Close()

	if _, err := buildOnce(ctx, cfg, s, *rootPath, *outDir); err != nil {
		os.Exit(1)
	}
}

// buildOnce runs one full build: graph construction, cycle detection, work
// plan scheduling, rendering, and HTML composition. It is shared by `build`
// and `serve`'s rebuild-on-change loop.
func buildOnce(ctx context.Context, cfg *config.Config, s *store.SQLiteStore, rootPath, outDir string) (int, error) {
	buildID := uuid.NewString()
	ctx = monitoring.WithBuildIDContext(ctx, buildID)
	log.Info().Str("build_id", buildID).Str("root", rootPath).Msg("starting build")

	l := loader.New()
	l.GitignoreGate = cfg.Loader.GitignoreGate

	builder := graph.NewBuilder(l, parse.Parse)
	g, err := builder.Build(ctx, resource.Local(rootPath))
	if err != nil {
		log.Error().Err(err).Msg("building dependency graph")
		return 0, err
	}
	if err := graph.DetectCycles(g); err != nil {
		log.Error().Err(err).Msg("circular dependency")
		return 0, err
	}
	plan, err := graph.GenerateWorkPlan(g)
	if err != nil {
		log.Error().Err(err).Msg("scheduling work plan")
		return 0, err
	}
	log.Info().Int("layers", len(plan.Layers)).Int("resources", len(g.Nodes)).Msg("work plan ready")

	registry := adapters.NewRegistry()
	for name, pc := range cfg.Providers.Providers {
		if pc.Kind == "bedrock" {
			bedrock, err := adapters.NewBedrockAI(ctx, pc.ModelID)
			if err != nil {
				log.Error().Err(err).Str("provider", name).Msg("initializing bedrock provider")
				continue
			}
			registry.Register(name, bedrock)
		}
	}
	registry.SetDefault(cfg.Providers.Default)

	resolver := &adapters.CachedResolver{Registry: registry, Store: s}
	audio := &adapters.CachedAudio{Processor: adapters.StdAudioProcessor{}, Loader: l, Store: s}
	orch := &render.Orchestrator{Loader: l, Parse: parse.Parse, Resolver: resolver, Audio: audio}

	rendered, err := orch.Execute(ctx, g, plan, parse.Frontmatter{})
	if err != nil {
		log.Error().Err(err).Msg("rendering")
		return 0, err
	}

	image := &adapters.CachedImage{Processor: &adapters.StdImageProcessor{}, Loader: l, Store: s}
	composer := &html.Composer{ImageResolver: image.ResolveSrc}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Error().Err(err).Msg("creating output directory")
		return 0, err
	}
	for hash, doc := range rendered {
		out, err := composer.Compose(doc)
		if err != nil {
			log.Error().Err(err).Str("resource_hash", hash.String()).Msg("composing HTML")
			return 0, err
		}
		outPath := filepath.Join(outDir, hash.String()+".html")
		if err := os.WriteFile(outPath, []byte(out), 0o644); err != nil {
			log.Error().Err(err).Msg("writing output")
			return 0, err
		}
	}
	log.Info().Int("documents", len(rendered)).Msg("build complete")
	return len(rendered), nil
}

// runServe rebuilds whenever a .md file under the working directory gets a
// newer modification time (other files are not watched) and serves the
// output directory with live reload over WebSocket (internal/devserver).
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "composer.yaml", "path to configuration file")
	rootPath := fs.String("root", "index.md", "root document to build")
	outDir := fs.String("out", "dist", "output directory")
	addr := fs.String("addr", ":4000", "address to listen on")
	pollInterval := fs.Duration("poll", 500*time.Millisecond, "filesystem poll interval")
	fs.Parse(args)

	printBanner()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "composer: %v\n", err)
		os.Exit(1)
	}
	monitoring.Global(monitoring.LoggerConfig{Level: "info"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(cfg.Cache.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("opening cache store")
		os.Exit(1)
	}
	defer s.Close()

	if _, err := buildOnce(ctx, cfg, s, *rootPath, *outDir); err != nil {
		log.Warn().Err(err).Msg("initial build failed, serving stale output")
	}

	srv := devserver.New(*outDir)
	httpSrv := &http.Server{Addr: *addr, Handler: srv.Handler()}
	go func() {
		log.Info().Str("addr", *addr).Msg("serving preview")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("preview server")
		}
	}()

	lastMtime := latestMarkdownMtime(".")
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = httpSrv.Shutdown(context.Background())
			return
		case <-ticker.C:
			current := latestMarkdownMtime(".")
			if current.After(lastMtime) {
				lastMtime = current
				if _, err := buildOnce(ctx, cfg, s, *rootPath, *outDir); err != nil {
					log.Warn().Err(err).Msg("rebuild failed")
					continue
				}
				srv.Reload(ctx)
			}
		}
	}
}

// latestMarkdownMtime walks dir and returns the newest modification time
// among its .md files, used by `serve` to detect changes without pulling
// in a filesystem-watch dependency the pack doesn't otherwise supply.
func latestMarkdownMtime(dir string) time.Time {
	var latest time.Time
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ".md" && info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	return latest
}

func runCache(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: composer cache <gc|inspect> [--config path]")
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	configPath := fs.String("config", "composer.yaml", "path to configuration file")
	fs.Parse(args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "composer: %v\n", err)
		os.Exit(1)
	}
	s, err := store.Open(cfg.Cache.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "composer: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	ctx := context.Background()
	switch sub {
	case "gc":
		n, err := s.CleanExpiredLLM(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "composer: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("removed %d expired llm_cache entries\n", n)
	case "inspect":
		fmt.Println("cache database:", cfg.Cache.DBPath)
	default:
		fmt.Fprintf(os.Stderr, "unknown cache subcommand %q\n", sub)
		os.Exit(1)
	}
}
