package commands

import (
	"github.com/spf13/cobra"

	contributionhttp "abitudini/gridrange/internal/adapters/http/contribution"
	appcontribution "abitudini/gridrange/internal/application/contribution"
)

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch contribution grids from the habit API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := appcontribution.ParseHabitIDs(habits)
			if err != nil {
				return err
			}

			rt := wire(cmd.Context())
			defer rt.close()

			p, err := plan(rt.service)
			if err != nil {
				return err
			}

			grids, err := rt.service.LoadPlan(cmd.Context(), p, ids)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), contributionhttp.LoadResponse{
				RangeResponse: contributionhttp.NewRangeResponse(p),
				Grids:         grids,
			})
		},
	}
	addWidthFlags(cmd)
	addHabitsFlag(cmd)
	return cmd
}
