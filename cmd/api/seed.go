package main

import (
	"github.com/spf13/cobra"

	"vital-route-api-server/internal/database"
)

type seedOptions struct {
	*rootOptions
	AdminEmail    string
	AdminPassword string
	SkipFleet     bool
}

func newSeedCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &seedOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Create the admin profile and the starter fleet",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.rootOptions)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if err := database.SeedAdmin(ctx, st, opts.AdminEmail, opts.AdminPassword); err != nil {
				return err
			}
			if opts.SkipFleet {
				return nil
			}
			_, err = database.SeedVehicles(ctx, st, database.DefaultFleet)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", database.DefaultAdminEmail, "email of the admin profile")
	cmd.Flags().StringVar(&opts.AdminPassword, "admin-password", database.DefaultAdminPassword, "password of the admin profile")
	cmd.Flags().BoolVar(&opts.SkipFleet, "skip-fleet", false, "do not insert the starter fleet")
	return cmd
}
