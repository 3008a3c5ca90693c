package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// set at build time with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "janusbridge",
		Short: "Janus gateway client with a websocket chat relay",
		Long: `janusbridge keeps one session open against a Janus WebRTC gateway,
reconnecting with backoff, and serves a browser chat relay whose
/createroom and /kick commands are executed as videoroom requests.
Gateway events are fanned out to the chat and to NATS, Redis or Kafka.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), versionCmd())
	return root
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "janusbridge: %s\n", err)
		os.Exit(1)
	}
}
