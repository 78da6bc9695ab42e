package commands

import (
	"github.com/spf13/cobra"

	contributionhttp "abitudini/gridrange/internal/adapters/http/contribution"
	appcontribution "abitudini/gridrange/internal/application/contribution"
)

func requestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Print the per-habit contribution URLs for a viewport width",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := appcontribution.ParseHabitIDs(habits)
			if err != nil {
				return err
			}

			service := newService(nil)
			p, err := plan(service)
			if err != nil {
				return err
			}

			requests, err := service.Requests(p, ids)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), contributionhttp.RequestsResponse{
				RangeResponse: contributionhttp.NewRangeResponse(p),
				Requests:      requests,
			})
		},
	}
	addWidthFlags(cmd)
	addHabitsFlag(cmd)
	return cmd
}
