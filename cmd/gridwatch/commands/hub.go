package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gridwatch/gridwatch/config"
	"github.com/gridwatch/gridwatch/event"
	"github.com/gridwatch/gridwatch/hub"
	"github.com/gridwatch/gridwatch/logger"
	"github.com/gridwatch/gridwatch/quarantine"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Start the cluster-wide Hub daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return invalidArgs(fmt.Errorf("load config: %w", err))
		}

		h := hub.New(cfg.Hub.WSAddr, cfg.Hub.HTTPAddr)

		// The translator taps the same ingest stream every Agent
		// connection feeds into the global graph; a fault event on any
		// node drives taint+evict through the adapter, independent of
		// graph reads.
		translator := quarantine.NewTranslator(quarantine.LoggingAdapter{}, cfg.Quarantine.Enabled)
		h.Subscribe(func(ev event.Event) {
			if _, err := translator.Observe(context.Background(), ev); err != nil {
				logger.Warnw("hub: quarantine translator failed", logger.FieldError, err.Error())
			}
		})

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger.Infow("gridwatch hub starting", "ws_addr", cfg.Hub.WSAddr, "http_addr", cfg.Hub.HTTPAddr)
		errCh := make(chan error, 1)
		go func() { errCh <- h.ListenAndServe() }()

		select {
		case <-ctx.Done():
			logger.Infow("gridwatch hub stopped")
			return nil
		case err := <-errCh:
			return actionFailed(err)
		}
	},
}
