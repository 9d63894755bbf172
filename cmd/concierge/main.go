// Package main provides the concierge command line: run a single turn
// against the configured collaborators, or lint a rules file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/agentoven/concierge/internal/rules"
	"github.com/agentoven/concierge/pkg/models"
	"github.com/agentoven/concierge/pkg/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time)
var version = "dev"

func main() {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:     "concierge",
		Short:   "Concierge turn engine tools",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONCIERGE_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(turnCmd(&configPath), rulesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// turn command - run one RunTurn and print the result
func turnCmd(configPath *string) *cobra.Command {
	var (
		req      models.TurnRequest
		history  string
		thinking bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Run one conversation turn and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.UserMessage == "" {
				return fmt.Errorf("--message is required")
			}
			if history != "" {
				data, err := os.ReadFile(history)
				if err != nil {
					return fmt.Errorf("read history: %w", err)
				}
				if err := json.Unmarshal(data, &req.Messages); err != nil {
					return fmt.Errorf("parse history: %w", err)
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			srv, err := server.New(ctx, *configPath)
			if err != nil {
				return err
			}
			defer srv.Close(context.Background())

			var onThinking models.ThinkingFunc
			if thinking {
				onThinking = func(msg string, _ map[string]string) {
					fmt.Fprintln(cmd.ErrOrStderr(), "…", msg)
				}
			}

			res := srv.Engine.RunTurn(ctx, req, onThinking)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Error != "" {
				return fmt.Errorf("turn failed: %s", res.Error)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&req.UserMessage, "message", "m", "", "user message")
	f.StringVarP(&req.ThreadID, "thread", "t", "", "thread id (enables refinement persistence)")
	f.StringVar(&req.UserID, "user", "", "user id")
	f.StringVar(&req.BundleID, "bundle", "", "bundle id from a previous turn")
	f.StringVar(&req.OrderID, "order", "", "order id to track")
	f.IntVar(&req.Limit, "limit", 0, "products per query")
	f.StringVar(&history, "history", "", "JSON file with prior messages [{role, content}]")
	f.BoolVar(&thinking, "thinking", false, "print thinking updates to stderr")
	f.DurationVar(&timeout, "timeout", 2*time.Minute, "deadline for the whole turn")
	return cmd
}

// rules command - validate a rules file
func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with rules files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a rules YAML file and report every problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := rules.Parse(data)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %d rules OK\n", len(cfg.Rules))
				return nil
			}
			errs := rules.Validate(cfg)
			if len(errs) == 0 {
				return err
			}
			for _, e := range errs {
				fmt.Fprintln(cmd.ErrOrStderr(), "✗", e)
			}
			return fmt.Errorf("%d problems in %s", len(errs), args[0])
		},
	})
	return cmd
}
