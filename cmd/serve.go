package cmd

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rakimsSpiritual/tpsc-final/internal/relay"
	"github.com/rakimsSpiritual/tpsc-final/internal/server"
)

var flagServeAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay server",
	Long: `Run the signaling relay. The relay tracks meeting membership and routes
negotiation payloads between participants; media never passes through it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	hub := relay.NewHub()
	go hub.Run()

	slog.Info("signaling relay listening", "addr", flagServeAddr)
	return http.ListenAndServe(flagServeAddr, server.Routes(hub))
}
