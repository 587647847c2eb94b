package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/credentials"
	"smallbiznis-crm/pkg/trialclient"
	"smallbiznis-crm/services/trial"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type flags struct {
	baseURL  string
	tenantID string
	token    string
	interval time.Duration
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:          "trialctl",
		Short:        "Inspect a tenant's trial status and banner",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&f.baseURL, "url", "http://localhost:8080", "billing API base URL")
	rootCmd.PersistentFlags().StringVar(&f.tenantID, "tenant", "", "tenant id")
	rootCmd.PersistentFlags().StringVar(&f.token, "token", "", "bearer token")
	_ = rootCmd.MarkPersistentFlagRequired("tenant")

	watchCmd := newWatchCmd(f)
	watchCmd.Flags().DurationVar(&f.interval, "interval", time.Minute, "refresh interval")

	rootCmd.AddCommand(
		newStatusCmd(f),
		newBannerCmd(f),
		watchCmd,
	)

	return rootCmd
}

func newClient(f *flags) (*trialclient.Client, error) {
	cfg, err := config.Load(viper.New(), ".")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	opts := trialclient.Options{
		BaseURL:  f.baseURL,
		TenantID: f.tenantID,
		Pricing: trial.Pricing{
			Amount:   cfg.Trial.PriceAmount,
			Currency: cfg.Trial.Currency,
			Interval: cfg.Trial.Interval,
		},
		SubscribeURL: cfg.Trial.SubscribeURL,
	}
	if f.token != "" {
		opts.Credentials = credentials.Static(f.token)
	}

	return trialclient.New(opts), nil
}

func newStatusCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the raw trial status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(f)
			if err != nil {
				return err
			}

			status, err := client.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newBannerCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "banner",
		Short: "Print the banner the CRM would render",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient(f)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), client.Banner(cmd.Context()))
		},
	}
}

func newWatchCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the trial status and print every banner change",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.interval <= 0 {
				return fmt.Errorf("interval must be positive, got %s", f.interval)
			}

			client, err := newClient(f)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			poller := trialclient.NewPoller(client, f.interval)
			poller.OnChange(func(s trialclient.Snapshot) {
				_, _ = fmt.Fprintf(out, "[%s] #%d ", s.FetchedAt.Format(time.RFC3339), s.Generation)
				_ = writeJSON(out, s.Banner)
			})
			poller.Run(ctx)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
