package commands

import (
	"github.com/spf13/cobra"

	contributionhttp "abitudini/gridrange/internal/adapters/http/contribution"
)

func rangeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Print the grid window for a viewport width",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan(newService(nil))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), contributionhttp.NewRangeResponse(p))
		},
	}
	addWidthFlags(cmd)
	return cmd
}
