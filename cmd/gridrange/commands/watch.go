package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	contributionhttp "abitudini/gridrange/internal/adapters/http/contribution"
	appcontribution "abitudini/gridrange/internal/application/contribution"
	corecontribution "abitudini/gridrange/internal/core/contribution"
)

// watchCmd replays viewport resizes read from stdin, one width per line. Grids load once after
// GRID_INITIAL_DELAY and again whenever GRID_RESIZE_DEBOUNCE passes without a new width.
func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload contribution grids as viewport widths arrive on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := appcontribution.ParseHabitIDs(habits)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt := wire(ctx)
			defer rt.close()

			var outMu sync.Mutex
			refresher := appcontribution.NewRefresher(appcontribution.RefresherOptions{
				Planner: rt.service,
				Load: func(ctx context.Context, p corecontribution.Plan) error {
					grids, err := rt.service.LoadPlan(ctx, p, ids)
					if err != nil {
						return err
					}

					outMu.Lock()
					defer outMu.Unlock()
					return printJSON(cmd.OutOrStdout(), contributionhttp.LoadResponse{
						RangeResponse: contributionhttp.NewRangeResponse(p),
						Grids:         grids,
					})
				},
				InitialDelay: cfg.Grid.InitialDelay,
				Debounce:     cfg.Grid.ResizeDebounce,
				Logger:       log,
			})
			defer refresher.Close()

			refresher.Start(ctx, width)

			widths, readErr := readWidths(ctx, cmd.InOrStdin())
			for {
				select {
				case <-ctx.Done():
					return nil
				case w, ok := <-widths:
					if !ok {
						refresher.Flush()
						return <-readErr
					}
					refresher.Resize(w)
				}
			}
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 0, "initial viewport width in pixels")
	_ = cmd.MarkFlagRequired("width")
	addHabitsFlag(cmd)
	return cmd
}

// readWidths streams widths from in until EOF or ctx ends. Blank lines are ignored and invalid
// ones logged.
func readWidths(ctx context.Context, in io.Reader) (<-chan int, <-chan error) {
	widths := make(chan int)
	errCh := make(chan error, 1)

	go func() {
		defer close(widths)

		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			w, err := strconv.Atoi(line)
			if err != nil {
				log.Warn("Ignoring invalid width", "input", line)
				continue
			}
			select {
			case widths <- w:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("read widths: %w", err)
			return
		}
		errCh <- nil
	}()

	return widths, errCh
}
