package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"deskcal/internal/config"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
	"deskcal/internal/remind"
	"deskcal/internal/store"
)

const version = "1.1.0"

var (
	flagConfig  string
	flagDebug   bool
	flagTick    time.Duration
	flagAutoAck bool
)

var rootCmd = &cobra.Command{
	Use:   "deskcal",
	Short: "Sticky-note calendar event store and reminder engine",
	Long: `deskcal manages the event store behind the desktop calendar widget:
dual-mode persistence (calendar file or SQLite), recurrence expansion,
and the reminder polling loop. The widget UI talks to this core.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagDebug {
			appLog.SetLevel(appLog.LevelDebug)
		}
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reminder scheduler until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(flagConfig)
		if err != nil {
			return err
		}
		appLog.Info("store opened",
			"config", flagConfig,
			"mode", st.Mode(),
			"events", len(st.ListAll()),
		)

		sched := remind.New(st, flagTick)
		sched.OnDayChange(func() {
			appLog.Info("day changed", "date", model.DayOf(time.Now()).Format("2006-01-02"))
		})
		sched.OnReminder(func(e model.Event) {
			fmt.Printf("REMINDER\t%s\t%s\n", model.FormatTime(e.StartTime), e.Title)
			if flagAutoAck {
				sched.Acknowledge(e.ID)
			}
		})
		if err := sched.Start(); err != nil {
			return err
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())

		sched.Stop()
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list [days]",
	Short: "Print the expanded occurrences for the next N days (default 7)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days := 7
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid day count %q", args[0])
			}
			days = n
		}

		st, err := store.Open(flagConfig)
		if err != nil {
			return err
		}

		today := model.DayOf(time.Now())
		window := st.QueryRange(today, today.AddDate(0, 0, days-1))
		for day := today; !day.After(today.AddDate(0, 0, days-1)); day = day.AddDate(0, 0, 1) {
			for _, e := range window[day] {
				mark := " "
				if e.Finished {
					mark = "x"
				}
				fmt.Printf("%s [%s] %-6s %s\n",
					day.Format("2006-01-02"), mark, e.Priority, e.Title)
			}
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.ics>",
	Short: "Import events from a calendar file, skipping known UIDs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(flagConfig)
		if err != nil {
			return err
		}
		n := st.ImportICS(args[0])
		fmt.Printf("imported %d event(s)\n", n)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <file.ics>",
	Short: "Export the full event set to a calendar file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(flagConfig)
		if err != nil {
			return err
		}
		if err := st.ExportICS(args[0]); err != nil {
			return err
		}
		fmt.Printf("exported %d event(s) to %s\n", len(st.ListAll()), args[0])
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <file|relational>",
	Short: "Switch the storage backend, copying every event across",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(flagConfig)
		if err != nil {
			return err
		}
		if err := st.SwitchMode(args[0]); err != nil {
			return err
		}
		fmt.Printf("storage mode is now %s (%d events)\n", st.Mode(), len(st.ListAll()))
		return nil
	},
}

var memoCmd = &cobra.Command{
	Use:   "memo [text]",
	Short: "Print the global memo, or replace it when text is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(flagConfig)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(st.Memo())
			return nil
		}
		if !st.SaveMemo(args[0]) {
			return fmt.Errorf("failed to save memo")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the deskcal version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deskcal %s (config format %s)\n", version, config.Version)
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "CalendarData.yaml"
	}
	return filepath.Join(home, ".deskcal", "CalendarData.yaml")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to the configuration document")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	runCmd.Flags().DurationVar(&flagTick, "interval", remind.DefaultInterval, "reminder poll interval")
	runCmd.Flags().BoolVar(&flagAutoAck, "ack", true, "acknowledge reminders immediately after printing")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(memoCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
