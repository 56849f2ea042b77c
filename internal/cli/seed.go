package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"busticket/internal/config"
	"busticket/internal/models"
	"busticket/internal/service"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// BusFile is the YAML definition of a bus. Seats without a seat number are
// labelled from their row and column.
type BusFile struct {
	BusNumber string        `yaml:"busNumber"`
	Amenities []string      `yaml:"amenities"`
	Route     *RouteRef     `yaml:"route,omitempty"`
	Seats     []models.Seat `yaml:"seats"`
}

type RouteRef struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// SeedResult is what seed reports back.
type SeedResult struct {
	Bus   *models.Bus   `json:"bus"`
	Route *models.Route `json:"route,omitempty"`
}

// LoadBusFile decodes a bus definition, rejecting unknown keys.
func LoadBusFile(r io.Reader) (*BusFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f BusFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse bus file: %w", err)
	}
	return &f, nil
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		file      string
		routeFrom string
		routeTo   string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a bus from a YAML definition and optionally attach it to a route",
		Example: `  busctl seed --file bus.yaml
  busctl seed --file bus.yaml --route-from Bengaluru --route-to Mysuru`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(file)
			if err != nil {
				return err
			}
			defer fh.Close()

			def, err := LoadBusFile(fh)
			if err != nil {
				return err
			}
			if routeFrom != "" || routeTo != "" {
				def.Route = &RouteRef{From: routeFrom, To: routeTo}
			}

			cfg := config.Load()
			infra, err := rootOpts.connect(cfg)
			if err != nil {
				return err
			}
			defer infra.Close()

			result, err := Seed(cmd.Context(), infra.Services(cfg), def)
			if err != nil {
				return err
			}

			return output(rootOpts, cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Created bus %s (id %d, %d seats)\n", result.Bus.BusNumber, result.Bus.ID, result.Bus.Capacity)
				if result.Route != nil {
					fmt.Fprintf(w, "Attached to route %s - %s (id %d)\n", result.Route.StartLocation, result.Route.EndLocation, result.Route.ID)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "bus definition file (YAML)")
	cmd.Flags().StringVar(&routeFrom, "route-from", "", "start location of the route to attach the bus to")
	cmd.Flags().StringVar(&routeTo, "route-to", "", "end location of the route to attach the bus to")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// Seed creates the bus and, when the definition names a route, attaches the
// bus to it.
func Seed(ctx context.Context, services *service.Services, def *BusFile) (*SeedResult, error) {
	if def.Route != nil && (strings.TrimSpace(def.Route.From) == "" || strings.TrimSpace(def.Route.To) == "") {
		return nil, fmt.Errorf("route needs both from and to")
	}

	bus, err := services.Buses.Create(ctx, &models.CreateBusRequest{
		BusNumber: def.BusNumber,
		Amenities: def.Amenities,
		Seats:     def.Seats,
	})
	if err != nil {
		return nil, err
	}

	result := &SeedResult{Bus: bus}
	if def.Route != nil {
		result.Route, err = services.Routes.AttachBus(ctx, def.Route.From, def.Route.To, bus.ID)
		if err != nil {
			return result, fmt.Errorf("bus %d created but not attached: %w", bus.ID, err)
		}
	}
	return result, nil
}
