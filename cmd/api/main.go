// server/cmd/api/main.go
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("vitalroute exited with an error")
		os.Exit(1)
	}
}

type rootOptions struct {
	ConfigDir string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vitalroute",
		Short: "VitalRoute emergency dispatch API",
		Long:  "Receives public emergency alerts, dispatches them to ambulance and fire drivers, and streams live views to admin consoles.",
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "./config", "directory containing config.yaml")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	return cmd
}
