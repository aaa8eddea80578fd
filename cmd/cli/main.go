package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/repository"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/config"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

const usage = "expected 'export', 'import' or 'token' subcommands"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	importFile := importCmd.String("file", "", "JSON array of documents to import")
	importCollection := importCmd.String("collection", "", "target collection, e.g. users or blogs")
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenSubject := tokenCmd.String("subject", "", "admin identity placed in the token")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "token lifetime")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	switch os.Args[1] {
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		withRepo(cfg, doExport)
	case "import":
		_ = importCmd.Parse(os.Args[2:])
		if *importFile == "" || *importCollection == "" {
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		withRepo(cfg, func(ctx context.Context, repo ports.Repository) error {
			return doImport(ctx, repo, domain.Collection(*importCollection), *importFile)
		})
	case "token":
		_ = tokenCmd.Parse(os.Args[2:])
		if *tokenSubject == "" {
			tokenCmd.PrintDefaults()
			os.Exit(1)
		}
		token, err := signToken(cfg.JWTSecret, *tokenSubject, *tokenTTL, time.Now())
		if err != nil {
			logging.Fatal().Err(err).Msg("Token failed")
		}
		fmt.Println(token)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func withRepo(cfg *config.Config, fn func(ctx context.Context, repo ports.Repository) error) {
	ctx := context.Background()
	repo, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to db")
	}
	defer repo.Close(ctx)

	if err := fn(ctx, repo); err != nil {
		logging.Error().Err(err).Msg("Command failed")
		repo.Close(ctx)
		os.Exit(1)
	}
}

func doExport(ctx context.Context, repo ports.Repository) error {
	visits, err := repo.DumpVisits(ctx)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(visits); err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	return nil
}

func doImport(ctx context.Context, repo ports.ContentRepository, collection domain.Collection, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var docs []domain.Document
	if err := json.NewDecoder(file).Decode(&docs); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}

	count, err := repo.InsertDocuments(ctx, collection, docs)
	if err != nil {
		return fmt.Errorf("import into %s failed: %w", collection, err)
	}
	logging.Info().Int("count", count).Str("collection", string(collection)).Msg("Imported documents")
	return nil
}

// signToken mints an admin token accepted by the admin-stats route.
func signToken(secret, subject string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
