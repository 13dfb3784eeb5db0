package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/medphys/bulkcbct/pkg/logging"
	"github.com/medphys/bulkcbct/pkg/web"
)

var (
	serveAddr     string
	serveLogLevel string
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inventory scan web form",
		Long: `Start a small web UI for running inventory scans interactively.

The form mirrors the scan command: pick a root directory, adjust the image
extensions, and download the resulting inventory as JSON.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", envOr("BULKCBCT_ADDR", ":8080"), "Address to listen on")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", envOr("BULKCBCT_LOG_LEVEL", "info"), "Logging verbosity (debug, info, warn, error)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(logging.Config{Level: serveLogLevel, Format: "json"})

	handler := web.NewRouter(nil, logger)
	logger.Info("web UI listening", "addr", serveAddr)

	if err := http.ListenAndServe(serveAddr, handler); err != nil {
		return fmt.Errorf("serve web UI: %w", err)
	}
	return nil
}
