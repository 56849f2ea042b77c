package cli

import (
	"fmt"
	"io"

	"busticket/internal/config"

	"github.com/spf13/cobra"
)

// NewReindexCommand creates the reindex command.
func NewReindexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every route with bus availability into Elasticsearch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cfg.Elasticsearch.Enabled {
				return fmt.Errorf("elasticsearch is disabled, set ELASTICSEARCH_ENABLED=true")
			}

			infra, err := rootOpts.connect(cfg)
			if err != nil {
				return err
			}
			defer infra.Close()

			n, err := infra.Services(cfg).Routes.Reindex(cmd.Context())
			if err != nil {
				return fmt.Errorf("reindex failed after %d routes: %w", n, err)
			}

			result := struct {
				Indexed int `json:"indexed"`
			}{n}
			return output(rootOpts, cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Indexed %d routes\n", n)
			})
		},
	}
}
