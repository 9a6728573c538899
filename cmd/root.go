package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tpsc",
	Short: "Multi-party WebRTC meetings: signaling relay and participant client",
	Long: `tpsc coordinates multi-party real-time audio/video sessions. Each
participant establishes a direct media link to every other participant in the
same meeting; a small relay only exchanges negotiation messages and never
touches media itself.

Run the relay with "tpsc serve" and join a meeting with "tpsc join".`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
