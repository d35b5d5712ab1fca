// Command analyze runs contract analysis from the command line.
//
// Analyze a contract:
//
//	go run ./cmd/analyze --file ./계약서.pdf
//
// Ask a question about it:
//
//	go run ./cmd/analyze --file ./계약서.pdf --query "위약금 조항이 위험한가요?"
//
// List registered documents:
//
//	go run ./cmd/analyze --list
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/jaekyeom/clauselens"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML or JSON config file")
		filePath   = flag.String("file", "", "Contract PDF to analyze")
		query      = flag.String("query", "", "Question to run through the agent")
		list       = flag.Bool("list", false, "List registered documents")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *filePath == "" && *query == "" && !*list {
		flag.Usage()
		os.Exit(2)
	}

	cfg := clauselens.DefaultConfig()
	if *configPath != "" {
		loaded, err := clauselens.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	applyEnvKeys(&cfg)

	engine, err := clauselens.New(cfg)
	if err != nil {
		log.Fatalf("creating engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()

	if *list {
		files, err := engine.Storage().ListPDFs(ctx)
		if err != nil {
			log.Fatalf("listing documents: %v", err)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "No documents registered.")
		}
		for _, f := range files {
			fmt.Printf("%4d  %-40s  %s\n", f.ID, f.Filename, f.CreatedAt)
		}
		if *filePath == "" && *query == "" {
			return
		}
	}

	if *filePath != "" {
		fmt.Fprintf(os.Stderr, "Analyzing %s...\n", filepath.Base(*filePath))
		start := time.Now()
		report, err := engine.Analyze(ctx, *filePath)
		if err != nil {
			log.Fatalf("analyzing %s: %v", *filePath, err)
		}
		fmt.Fprintf(os.Stderr, "Analysis finished in %s\n", time.Since(start).Round(time.Millisecond))
		printJSON(map[string]any{
			"summary":   report.SummaryValue(),
			"highlight": report.Highlights,
		})
	}

	if *query != "" {
		printJSON(engine.Answer(ctx, *query, *filePath))
	}
}

// applyEnvKeys fills in API keys from the conventional env vars when the
// config leaves them blank.
func applyEnvKeys(cfg *clauselens.Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Chat.Provider == "openai" && cfg.Chat.APIKey == "" {
			cfg.Chat.APIKey = key
		}
		if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
	}
	if key := os.Getenv("UPSTAGE_API_KEY"); key != "" {
		if cfg.Upstage == nil {
			cfg.Upstage = &clauselens.UpstageConfig{}
		}
		if cfg.Upstage.APIKey == "" {
			cfg.Upstage.APIKey = key
		}
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" && cfg.Search.APIKey == "" {
		cfg.Search.APIKey = key
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("marshaling output: %v", err)
	}
	fmt.Println(string(data))
}
