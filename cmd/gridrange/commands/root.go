package commands

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"abitudini/gridrange/internal/infrastructure/config"
	"abitudini/gridrange/internal/infrastructure/logger"
)

var (
	cfg      config.AppConfig
	log      *slog.Logger
	logLevel string

	width  int
	today  string
	habits string
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "gridrange",
		Short:        "Size contribution grid date ranges to the viewport",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded

			level := cfg.Log.Level
			if logLevel != "" {
				level = logLevel
			}
			log = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.App.Name, level, cfg.App.Environment)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(serveCmd(), rangeCmd(), requestsCmd(), loadCmd(), watchCmd())
	return root
}

// addWidthFlags registers the flags every planning command shares.
func addWidthFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&width, "width", "w", 0, "viewport width in pixels")
	cmd.Flags().StringVar(&today, "today", "", "plan as of this date (YYYY-MM-DD) instead of the current day")
	_ = cmd.MarkFlagRequired("width")
}

func addHabitsFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&habits, "habits", "", "comma separated habit ids, e.g. 1,2,3")
	_ = cmd.MarkFlagRequired("habits")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
