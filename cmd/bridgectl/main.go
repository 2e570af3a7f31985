package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"bridge/internal/app"
	"bridge/internal/auction"
	"bridge/internal/config"
	"bridge/internal/deposit"
	"bridge/internal/hash"
	"bridge/internal/logging"
	"bridge/internal/store"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFormat  string
	configPath string
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "bridgectl",
		Short:        "Inspect auctions and drive bridge transactions from the command line",
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Set the logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Set the log output format (json or console)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to the config file")

	rootCmd.AddCommand(
		auctionsCmd(out),
		refreshCmd(out),
		bidCmd(out),
		balanceCmd(out),
		depositCmd(out),
		decodeCmd(out),
		journalCmd(out),
	)
	return rootCmd
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logging.New(os.Stderr, logLevel, logFormat), nil
}

// withApp builds the services, runs fn and closes them.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func auctionsCmd(out io.Writer) *cobra.Command {
	var q auction.Query
	var status, sort string
	cmd := &cobra.Command{
		Use:   "auctions",
		Short: "Fetch the auction book once and list it",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Status = auction.StatusFilter(status)
			q.Sort = auction.SortOrder(sort)
			return withApp(cmd.Context(), func(a *app.App) error {
				if _, err := a.Manager.Refresh(cmd.Context()); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
				}
				return printJSON(out, a.Manager.Query(q))
			})
		},
	}
	cmd.Flags().StringVar(&q.Network, "network", "", "Only list auctions of this network")
	cmd.Flags().StringVar(&q.Search, "search", "", "Match auction id or token symbol")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (all, active, upcoming, ended, settled, bidPlaced)")
	cmd.Flags().StringVar(&sort, "sort", "", "Sort order (endingSoon, newest, highestPrice)")
	cmd.Flags().IntVar(&q.Page, "page", 1, "Page to print")
	return cmd
}

func refreshCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch every network and print the per-network counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Manager.Refresh(cmd.Context())
				if perr := printJSON(out, result); perr != nil {
					return perr
				}
				return err
			})
		},
	}
}

func bidCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "bid <network> <auction-id>",
		Short: "Place a bid at the current price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid auction id %q", args[1])
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				if _, err := a.Manager.RefreshNetwork(cmd.Context(), args[0]); err != nil {
					return err
				}
				result, err := a.Manager.PlaceBid(cmd.Context(), args[0], id)
				if err != nil {
					return err
				}
				return printJSON(out, result)
			})
		},
	}
}

func balanceCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <network> <token>",
		Short: "Print the signer's token balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				b, err := a.Deposits.Balance(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(out, b)
			})
		},
	}
}

func depositCmd(out io.Writer) *cobra.Command {
	var req deposit.Request
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Open a cross-chain order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if dryRun {
					plan, err := a.Deposits.Prepare(req)
					if err != nil {
						return err
					}
					return printJSON(out, plan)
				}
				result, err := a.Deposits.Deposit(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(out, result)
			})
		},
	}
	cmd.Flags().StringVar(&req.SourceNetwork, "from", "", "Source network")
	cmd.Flags().StringVar(&req.DestNetwork, "to", "", "Destination network")
	cmd.Flags().StringVar(&req.SourceToken, "token", "", "Token to bridge")
	cmd.Flags().StringVar(&req.DestToken, "dest-token", "", "Token to receive, defaults to --token")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "Amount to deposit")
	cmd.Flags().StringVar(&req.MinAmount, "min-amount", "", "Minimum amount to receive, defaults to 90% of --amount")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and print the order without sending it")
	for _, f := range []string{"from", "to", "token", "amount"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func decodeCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <order-data>",
		Short: "Decode ABI encoded order data and print its order id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hash.ParseOriginData(args[0])
			if err != nil {
				return err
			}
			order, err := hash.Decode(raw)
			if err != nil {
				return err
			}
			id, err := hash.ID(order)
			if err != nil {
				return err
			}
			return printJSON(out, map[string]interface{}{"orderId": id, "order": order})
		},
	}
}

// openJournal opens the journal without dialing any network.
func openJournal() (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Journal.Path == "" {
		return nil, fmt.Errorf("journal is disabled")
	}
	return store.Open(cfg.Journal.Path)
}

func journalCmd(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print journaled deposits, bids and win sessions",
	}

	var network string
	bids := &cobra.Command{
		Use:   "bids",
		Short: "Print recorded bids",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openJournal()
			if err != nil {
				return err
			}
			defer st.Close()
			records, err := st.Bids(cmd.Context(), network)
			if err != nil {
				return err
			}
			return printJSON(out, records)
		},
	}
	bids.Flags().StringVar(&network, "network", "", "Only print bids on this network")

	deposits := &cobra.Command{
		Use:   "deposits",
		Short: "Print opened orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openJournal()
			if err != nil {
				return err
			}
			defer st.Close()
			records, err := st.Deposits(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(out, records)
		},
	}

	wins := &cobra.Command{
		Use:   "wins",
		Short: "Print fill and settle sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openJournal()
			if err != nil {
				return err
			}
			defer st.Close()
			sessions, err := st.LoadSessions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(out, sessions)
		},
	}

	cmd.AddCommand(bids, deposits, wins)
	return cmd
}
