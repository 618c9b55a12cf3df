package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"shopfloor-ops-backend/config"
	"shopfloor-ops-backend/internal/db"
	"shopfloor-ops-backend/internal/logging"
	"shopfloor-ops-backend/internal/machines"
	"shopfloor-ops-backend/internal/model"
	"shopfloor-ops-backend/internal/policy"
	"shopfloor-ops-backend/internal/seed"
	"shopfloor-ops-backend/internal/store"
	"shopfloor-ops-backend/internal/users"
)

const version = "0.1.0"

// operator is the identity the CLI acts as when it goes through services.
var operator = policy.Actor{Role: model.RoleAdmin}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("OPS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "Shop floor operations maintenance tool",
		Long:          `opsctl seeds demo data, bootstraps admin accounts and reports overdue maintenance against the backend database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.String("config", "./config/config.yaml", "path to the backend configuration file")
	flags.String("db-driver", "", "database driver override (postgres or sqlite)")
	flags.String("db-dsn", "", "database DSN override")
	flags.String("log-level", "warn", "log level")
	_ = v.BindPFlags(flags)

	root.AddCommand(newSeedCommand(v))
	root.AddCommand(newCreateAdminCommand(v))
	root.AddCommand(newDueCommand(v))
	return root
}

// loadConfig reads the configuration file if it exists and applies flag and
// OPS_* environment overrides on top of it.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v.GetString("config"))
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	} else if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if driver := v.GetString("db-driver"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := v.GetString("db-dsn"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg, nil
}

// open loads the configuration and connects to the database. The returned
// close func releases the connection.
func open(cmd *cobra.Command, v *viper.Viper) (context.Context, *gorm.DB, func(), error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, _ := logging.NewLogger(cmd.Context(), "opsctl", version, v.GetString("log-level"), true)

	gdb, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	}
	return ctx, gdb, closeFn, nil
}

func newSeedCommand(v *viper.Viper) *cobra.Command {
	var destroy bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace all data with the demo plant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, gdb, closeFn, err := open(cmd, v)
			if err != nil {
				return err
			}
			defer closeFn()

			if destroy {
				if err := seed.Destroy(ctx, gdb); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All data removed")
				return nil
			}

			if err := seed.Import(ctx, gdb); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Demo data imported. Accounts:")
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ROLE\tEMAIL\tPASSWORD")
			fmt.Fprintf(w, "admin\t%s\t%s\n", seed.AdminEmail, seed.AdminPassword)
			fmt.Fprintf(w, "technician\t%s\t%s\n", seed.TechEmail, seed.TechPassword)
			fmt.Fprintf(w, "user\t%s\t%s\n", seed.UserEmail, seed.UserPassword)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&destroy, "destroy", "d", false, "only remove existing data")
	return cmd
}

func newCreateAdminCommand(v *viper.Viper) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, gdb, closeFn, err := open(cmd, v)
			if err != nil {
				return err
			}
			defer closeFn()

			svc := users.NewService(store.NewGormStore(gdb), nil)
			u, err := svc.Create(ctx, operator, users.CreateInput{
				Name:     name,
				Email:    email,
				Password: password,
				Role:     model.RoleAdmin,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (id %d)\n", u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login e-mail")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newDueCommand(v *viper.Viper) *cobra.Command {
	var withinDays int

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List machines due for maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			if withinDays < 0 {
				return fmt.Errorf("--within cannot be negative")
			}
			ctx, gdb, closeFn, err := open(cmd, v)
			if err != nil {
				return err
			}
			defer closeFn()

			before := time.Now().UTC().AddDate(0, 0, withinDays)
			due, err := machines.NewService(store.NewGormStore(gdb), nil).DueForMaintenance(ctx, before)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(due) == 0 {
				fmt.Fprintln(out, "No machines due for maintenance")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSERIAL\tLOCATION\tSTATUS\tDUE")
			for _, m := range due {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					m.ID, m.Name, m.SerialNumber, m.Location, m.Status, m.NextScheduledMaintenance.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&withinDays, "within", 0, "also include machines due within this many days")
	return cmd
}
