package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/devverse06/FinSight/internal/interpret"
	"github.com/devverse06/FinSight/internal/ocr"
	"github.com/devverse06/FinSight/internal/transaction"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Local .env files are a convenience; absence is not an error
	_ = godotenv.Load()

	fs := ff.NewFlagSet("finsight")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "finsight.db", "Database file path")
		archivePath     = fs.StringLong("uploads", "./uploads", "Upload archive directory path")
		interpreterType = fs.StringLong("interpreter", "gemini", "Interpreter type: 'gemini' or 'ollama'")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llama3", "Ollama model name")
		corsOrigin      = fs.StringLong("cors-origin", "http://localhost:5173", "Trusted front-end origin for credentialed CORS")
		suffixPolicy    = fs.StringLong("suffix-policy", "first", "Account suffix resolution policy: 'first' or 'reject'")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("FINSIGHT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	policy, err := transaction.ParseSuffixPolicy(*suffixPolicy)
	if err != nil {
		slog.Error("Invalid suffix policy", "error", err)
		os.Exit(1)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := transaction.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize interpreter based on type
	var interpreter interpret.Interpreter
	switch *interpreterType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini interpreter...", "model", *geminiModel)
		interpreter, err = interpret.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama interpreter...", "url", *ollamaURL, "model", *ollamaModel)
		interpreter, err = interpret.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid interpreter type", "type", *interpreterType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer interpreter.Close()

	// Initialize OCR engine
	slog.Info("Initializing OCR engine...")
	extractor := ocr.NewTesseract()
	defer extractor.Close()

	// Initialize upload archive
	archive, err := transaction.NewLocalArchive(*archivePath)
	if err != nil {
		slog.Error("Failed to initialize upload archive", "error", err)
		os.Exit(1)
	}

	// Initialize service and server
	service := transaction.NewService(db, extractor, interpreter, archive, policy)
	server := transaction.NewServer(service, *corsOrigin)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
