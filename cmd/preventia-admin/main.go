// Command preventia-admin is an operator CLI for tasks that shouldn't live
// behind the REST API: hashing a full-content override token and running
// migrations standalone. Grounded on the teacher's pkg/util password
// prompting (golang.org/x/term, hidden terminal input).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/preventia/preventia-core/internal/audit"
	"github.com/preventia/preventia-core/internal/config"
	"github.com/preventia/preventia-core/internal/sources"
	"github.com/preventia/preventia-core/internal/storage/postgres"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "hash-override-token":
		hashOverrideToken(os.Args[2:])
	case "migrate":
		migrate(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: preventia-admin <hash-override-token|migrate> [flags]")
}

// hashOverrideToken prompts for the full-content elevated-privilege token
// (hidden input) and prints the bcrypt hash an operator pastes into
// Config.Sources.FullContentOverrideHash / PREVENTIA_SOURCES_FULL_OVERRIDE_HASH.
func hashOverrideToken(args []string) {
	fs := flag.NewFlagSet("hash-override-token", flag.ExitOnError)
	fs.Parse(args)

	if !term.IsTerminal(int(syscall.Stdin)) {
		log.Fatalf("hash-override-token requires an interactive terminal")
	}

	fmt.Fprint(os.Stderr, "full content override token: ")
	token, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Fatalf("read token: %v", err)
	}

	hash, err := sources.HashOverrideToken(string(token))
	if err != nil {
		log.Fatalf("hash token: %v", err)
	}
	fmt.Println(hash)
}

// migrate applies pending schema migrations outside of server startup,
// recording the same migration_baseline audit entry preventia-server would.
func migrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "path to JSON configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		ConnectionString: cfg.Database.URL,
		MaxConnections:   cfg.Database.MaxConnections,
		MigrationsPath:   cfg.Database.MigrationsPath,
	})
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()

	auditLog := audit.New(db)
	if err := db.MigrateAndAudit(ctx, auditLog); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	fmt.Println("migrations applied")
}
