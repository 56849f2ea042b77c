package cli

import (
	"fmt"
	"io"

	"busticket/internal/pricing"

	"github.com/spf13/cobra"
)

// NewQuoteCommand creates the quote command. It needs no database.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	var prices []int64

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Print the fee breakdown for a list of seat prices",
		Example: `  busctl quote --price 500 --price 500
  busctl quote --price 700,900 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := pricing.Calculate(prices)
			if err != nil {
				return err
			}
			return output(rootOpts, cmd.OutOrStdout(), b, func(w io.Writer) {
				fmt.Fprintf(w, "Seats:           %d\n", len(prices))
				fmt.Fprintf(w, "Subtotal:        %d\n", b.Subtotal)
				fmt.Fprintf(w, "Service fee:     %d\n", b.ServiceFee)
				fmt.Fprintf(w, "Convenience fee: %d\n", b.ConvenienceFee)
				fmt.Fprintf(w, "GST:             %d\n", b.GSTAmount)
				fmt.Fprintf(w, "Total:           %d\n", b.Total)
			})
		},
	}

	cmd.Flags().Int64SliceVar(&prices, "price", nil, "seat price, repeat once per seat")

	return cmd
}
