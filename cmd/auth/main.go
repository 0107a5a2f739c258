package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/tracker/internal/auth/app"
	"github.com/aussiebroadwan/tracker/internal/auth/service"
	"github.com/aussiebroadwan/tracker/pkg/cryptox"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(envFile)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}

	root := &cobra.Command{
		Use:           "auth",
		Short:         "Tracker authentication service",
		SilenceUsage:  true,
		Version:       app.BuildVersion,
		RunE:          serve.RunE,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is parsed")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.LoadCommon(envFile)
			if err != nil {
				return err
			}
			db, err := app.OpenStore(c, app.NewLogger(c))
			if err != nil {
				return err
			}
			return db.Close()
		},
	}

	var seed service.AdminSeed
	seedAdmin := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an Admin account unless the email is already registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.LoadCommon(envFile)
			if err != nil {
				return err
			}

			generated := seed.Password == ""
			if generated {
				if seed.Password, err = cryptox.GeneratePassword(); err != nil {
					return err
				}
			}

			created, err := app.SeedAdmin(cmd.Context(), c, app.NewLogger(c), seed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case !created:
				fmt.Fprintf(out, "account %s already exists, nothing to do\n", seed.Email)
			case generated:
				fmt.Fprintf(out, "created admin %s with password %s\n", seed.Email, seed.Password)
			default:
				fmt.Fprintf(out, "created admin %s\n", seed.Email)
			}
			return nil
		},
	}
	seedAdmin.Flags().StringVar(&seed.Email, "email", "", "admin email (required)")
	seedAdmin.Flags().StringVar(&seed.Password, "password", "", "admin password, generated when empty")
	seedAdmin.Flags().StringVar(&seed.FirstName, "first-name", "", "defaults to System")
	seedAdmin.Flags().StringVar(&seed.LastName, "last-name", "", "defaults to Administrator")
	if err := seedAdmin.MarkFlagRequired("email"); err != nil {
		log.Fatal(err)
	}

	root.AddCommand(serve, migrate, seedAdmin)
	return root
}
