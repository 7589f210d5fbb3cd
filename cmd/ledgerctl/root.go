package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/aradpay/golang_services/internal/ledger"
	"github.com/aradpay/golang_services/internal/platform/config"
	"github.com/aradpay/golang_services/internal/platform/database"
	"github.com/aradpay/golang_services/internal/platform/logger"
	"github.com/aradpay/golang_services/internal/platform/messagebroker"
)

const appName = "ledgerctl"

// session holds the connections opened for one command run.
type session struct {
	services *ledger.Services
	logger   *slog.Logger
	db       *pgxpool.Pool
	nats     messagebroker.NATSClient
}

func (s *session) Close() {
	if s.nats != nil {
		s.nats.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

var current *session

var rootCmd = &cobra.Command{
	Use:          appName,
	Short:        "Operate the ledger: seed limits, check limits, drive payrolls",
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.Close()
		}
	},
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle (openSession reads rootCmd's flags).
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		current = s
		return nil
	}
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL for this run")
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(appName)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	level := cfg.LogLevel
	if override, _ := rootCmd.PersistentFlags().GetString("log-level"); override != "" {
		level = override
	}
	s := &session{logger: logger.NewWithWriter(os.Stderr, level).With("service", appName)}

	s.db, err = database.NewDBPool(ctx, cfg.PostgresDSN, s.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	s.nats, err = messagebroker.NewNATSClient(cfg.NATSUrl, s.logger, appName)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s.services, err = ledger.Wire(cfg, s.db, s.nats, s.logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
