// Command templates stores prompt template overrides in the database or
// prints the active ones.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"listingshots/internal/adapter/repo"
	"listingshots/internal/domain/jsoncfg"
	"listingshots/internal/imagegen"
	"listingshots/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		fileFlag  string
		showFlag  bool
		resetFlag bool
	)
	flag.StringVar(&fileFlag, "file", "", "JSON file with generationTemplate, editTemplate and editLineTemplate")
	flag.BoolVar(&showFlag, "show", false, "print the effective templates and exit")
	flag.BoolVar(&resetFlag, "reset", false, "store an empty override so the built-in defaults apply")
	flag.Parse()

	if fileFlag == "" && !showFlag && !resetFlag {
		exitWithError(errors.New("one of -file, -show or -reset must be provided"))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(fmt.Errorf("invalid configuration: %w", err))
	}
	if cfg.DatabaseURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}
	pool, err := infra.NewDBPool(context.Background(), cfg)
	if err != nil {
		exitWithError(err)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", cfg.LogLevel).With().Str("cmd", "templates").Logger()
	templates := repo.NewTemplateRepository(infra.NewSQLRunner(pool, logger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if showFlag {
		stored, err := templates.Active(ctx)
		if err != nil {
			exitWithError(err)
		}
		out, _ := json.MarshalIndent(imagegen.WithDefaults(stored), "", "  ")
		fmt.Println(string(out))
		return
	}

	var next imagegen.Templates
	if !resetFlag {
		path := strings.TrimSpace(fileFlag)
		if _, err := os.Stat(path); err != nil {
			exitWithError(fmt.Errorf("template file: %w", err))
		}
		next, err = jsoncfg.LoadTemplates(path)
		if err != nil {
			exitWithError(err)
		}
		if next.IsZero() {
			exitWithError(errors.New("template file overrides nothing; use -reset to restore defaults"))
		}
	}
	if err := templates.Save(ctx, next); err != nil {
		exitWithError(err)
	}
	fmt.Println("prompt templates stored; restart the API to apply them")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "templates:", err)
	os.Exit(1)
}
