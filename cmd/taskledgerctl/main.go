// taskledgerctl is the operator CLI for taskledger.
//
// Usage:
//
//	taskledgerctl [-config path] account add <username>
//	taskledgerctl [-config path] account passwd <username>
//	taskledgerctl [-config path] account list
//	taskledgerctl [-config path] migrate status|up|down
//
// Passwords are read from the terminal without echo, or as one line from
// stdin when it is not a terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	_ "github.com/nerrad567/taskledger/migrations"

	"github.com/nerrad567/taskledger/internal/auth"
	"github.com/nerrad567/taskledger/internal/infrastructure/config"
	"github.com/nerrad567/taskledger/internal/infrastructure/database"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

const defaultConfigPath = "configs/config.yaml"

// errUsage is returned for malformed command lines.
var errUsage = errors.New("usage: taskledgerctl [-config path] account add|passwd|list [username] | migrate status|up|down")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli bundles what every subcommand needs.
type cli struct {
	db       *database.DB
	accounts auth.AccountRepository
	service  *auth.Service
	in       io.Reader
	out      io.Writer
}

// run parses args, opens the configured database and dispatches.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("taskledgerctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", defaultPath(), "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // process exits next

	c := &cli{db: db, in: in, out: out}

	if rest[0] == "migrate" {
		return c.migrate(ctx, rest[1:])
	}
	if rest[0] != "account" {
		return errUsage
	}

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	settings := auth.SettingsFromConfig(cfg)
	codec, err := auth.NewTokenCodec(settings)
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}
	repo := auth.NewAccountRepository(db.DB)
	c.accounts = repo
	c.service = auth.NewService(repo, auth.NewCredentialManager(settings), codec)

	return c.account(ctx, rest[1:])
}

func (c *cli) account(ctx context.Context, args []string) error {
	switch {
	case args[0] == "list" && len(args) == 1:
		return c.listAccounts(ctx)
	case args[0] == "add" && len(args) == 2:
		password, err := c.readSecret("Password for " + args[1] + ": ")
		if err != nil {
			return err
		}
		account, err := c.service.Signup(ctx, args[1], password)
		if err != nil {
			return fmt.Errorf("creating account: %w", err)
		}
		fmt.Fprintf(c.out, "created account %s (%s)\n", account.Username, account.ID)
		return nil
	case args[0] == "passwd" && len(args) == 2:
		password, err := c.readSecret("New password for " + args[1] + ": ")
		if err != nil {
			return err
		}
		if err := c.service.SetPassword(ctx, args[1], password); err != nil {
			return fmt.Errorf("setting password: %w", err)
		}
		fmt.Fprintf(c.out, "password updated for %s\n", args[1])
		return nil
	default:
		return errUsage
	}
}

func (c *cli) listAccounts(ctx context.Context) error {
	accounts, err := c.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tCREATED")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Username, a.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (c *cli) migrate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	switch args[0] {
	case "up":
		if err := c.db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	case "down":
		if err := c.db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	case "status":
	default:
		return errUsage
	}

	status, err := c.db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED")
	for _, r := range status.Applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
	}
	return tw.Flush()
}

// readSecret prompts on out and reads a password. Terminal input is not
// echoed; piped input is read up to the first newline.
func (c *cli) readSecret(prompt string) (string, error) {
	if f, ok := c.in.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(c.out, prompt)
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// defaultPath honours TASKLEDGER_CONFIG like the server does.
func defaultPath() string {
	if path := os.Getenv("TASKLEDGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
