// expensewa turns chat messages into ledger rows: it extracts structured
// expense records from free-form text or receipt photos and appends them to
// a spreadsheet, CSV file or database.
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/caesariodito/mp-auto-expense-wa/pkg/logging"
)

//go:embed config/accounts.json
var accountsJSON []byte

func main() {
	// Best-effort: a missing .env just means plain environment variables.
	_ = godotenv.Load()

	logger := logging.Setup(logging.DefaultConfig())

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runBot(logger)
	case "setup":
		fs := flag.NewFlagSet("setup", flag.ExitOnError)
		secretsPath := fs.String("secrets", defaultSecretsPath, "path to Google OAuth credentials JSON")
		force := fs.Bool("force", false, "force re-authentication")
		_ = fs.Parse(os.Args[2:])
		err = runSetup(logger, *secretsPath, *force)
	case "status":
		err = runStatus()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: expensewa <command>

Commands:
  run      start the expense bot (reader -> extraction -> ledger)
  setup    run the Google OAuth flow for the Sheets ledger
  status   check configuration and authentication
  help     show this message`)
}
