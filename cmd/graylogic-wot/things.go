package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newThingsCmd manages the stored Thing description URLs. Changes take
// effect on the next service start.
func newThingsCmd(configPath *string) *cobra.Command {
	things := &cobra.Command{
		Use:   "things",
		Short: "Manage stored Thing description URLs",
	}

	things.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored URLs and the poll interval",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := loadConfig(*configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				db, store, err := openSettings(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				s, err := store.Load(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "poll interval: %s\n", s.PollInterval)
				for _, u := range s.URLs {
					fmt.Fprintln(out, u)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add URL...",
			Short: "Store Thing description URLs",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(*configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				db, store, err := openSettings(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				for _, u := range args {
					if err := store.AddURL(cmd.Context(), u); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", u)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:     "remove URL...",
			Aliases: []string{"rm"},
			Short:   "Remove stored Thing description URLs",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(*configPath)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				db, store, err := openSettings(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				for _, u := range args {
					if err := store.RemoveURL(cmd.Context(), u); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", u)
				}
				return nil
			},
		},
		newPollIntervalCmd(configPath),
	)
	return things
}

func newPollIntervalCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "poll-interval DURATION",
		Short: "Store the device poll interval (e.g. 10s)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("parsing duration: %w", err)
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, store, err := openSettings(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.SetPollInterval(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "poll interval set to %s\n", d)
			return nil
		},
	}
}
