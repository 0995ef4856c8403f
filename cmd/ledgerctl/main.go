// Command ledgerctl inspects and maintains the reconciler ledger.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/benx421/payment-gateway/reconciler/internal/config"
	"github.com/benx421/payment-gateway/reconciler/internal/models"
	"github.com/benx421/payment-gateway/reconciler/internal/repository"
	"github.com/google/uuid"
)

type cli struct {
	app *kingpin.Application

	migrate *kingpin.CmdClause

	show          *kingpin.CmdClause
	showGateway   *string
	showReference *string
	showID        *string

	unmatched        *kingpin.CmdClause
	unmatchedGateway *string
	unmatchedLimit   *int

	purge          *kingpin.CmdClause
	purgeOlderThan *time.Duration
}

func newCLI() *cli {
	c := &cli{app: kingpin.New("ledgerctl", "Inspect and maintain the payment reconciler ledger.")}
	c.app.HelpFlag.Short('h')

	c.migrate = c.app.Command("migrate", "Apply pending Postgres ledger migrations.")

	c.show = c.app.Command("show", "Print a transaction with its event history.")
	c.showGateway = c.show.Arg("gateway", "Gateway kind (push-payment or order-capture).").String()
	c.showReference = c.show.Arg("reference", "Gateway reference.").String()
	c.showID = c.show.Flag("id", "Look up by transaction id instead of gateway reference.").String()

	c.unmatched = c.app.Command("unmatched", "List verified callbacks that matched no transaction.")
	c.unmatchedGateway = c.unmatched.Flag("gateway", "Only this gateway kind.").Short('g').String()
	c.unmatchedLimit = c.unmatched.Flag("limit", "Maximum rows to print.").Short('n').Default("100").Int()

	c.purge = c.app.Command("purge-idempotency", "Delete cached idempotent responses older than a cutoff.")
	c.purgeOlderThan = c.purge.Flag("older-than", "Age of keys to delete.").Default("24h").Duration()

	return c
}

func main() {
	c := newCLI()
	command := kingpin.MustParse(c.app.Parse(os.Args[1:]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer ledger.Close(context.Background())

	if err := c.run(ctx, command, ledger, os.Stdout, logger); err != nil {
		logger.Error("command failed", "command", command, "error", err)
		stop()
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, command string, ledger *repository.Ledger, out io.Writer, logger *slog.Logger) error {
	switch command {
	case c.migrate.FullCommand():
		if ledger.SQL == nil {
			logger.Info("ledger driver has no migrations")
			return nil
		}
		return ledger.SQL.Migrate(ctx)

	case c.show.FullCommand():
		txn, err := c.findTransaction(ctx, ledger.Transactions)
		if err != nil {
			return err
		}
		return printJSON(out, txn)

	case c.unmatched.FullCommand():
		var kind models.GatewayKind
		if *c.unmatchedGateway != "" {
			parsed, err := models.ParseGatewayKind(*c.unmatchedGateway)
			if err != nil {
				return err
			}
			kind = parsed
		}
		events, err := ledger.Transactions.ListUnmatched(ctx, kind, *c.unmatchedLimit)
		if err != nil {
			return err
		}
		return printJSON(out, events)

	case c.purge.FullCommand():
		cutoff := time.Now().Add(-*c.purgeOlderThan)
		deleted, err := ledger.Idempotency.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info("purged idempotency keys", "deleted", deleted, "cutoff", cutoff)
		return nil
	}

	return fmt.Errorf("unknown command %q", command)
}

func (c *cli) findTransaction(ctx context.Context, repo repository.TransactionRepository) (*models.Transaction, error) {
	if *c.showID != "" {
		id, err := uuid.Parse(*c.showID)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction id: %w", err)
		}
		return repo.FindByID(ctx, id)
	}

	if *c.showGateway == "" || *c.showReference == "" {
		return nil, fmt.Errorf("show needs <gateway> <reference> or --id")
	}
	kind, err := models.ParseGatewayKind(*c.showGateway)
	if err != nil {
		return nil, err
	}
	return repo.FindByReference(ctx, kind, *c.showReference)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
