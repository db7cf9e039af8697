package main

import (
	"fmt"

	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/domain"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/export"
	"github.com/iot-for-tillgenglighet/farmdash/internal/pkg/external/prices"
	"github.com/spf13/cobra"
)

func newPricesCommand(current func() *dashboard) *cobra.Command {
	var query prices.Query
	var xlsx string

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Show current market prices of a commodity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			quotes, err := d.prices.Prices(cmd.Context(), query)
			if err != nil {
				return failure(err, "")
			}

			if xlsx != "" {
				if err = export.WriteFile(xlsx, "Prices", quotes); err != nil {
					return err
				}
				fmt.Fprintf(d.out, "Exported %d prices to %s\n", len(quotes), xlsx)
				return nil
			}

			if len(quotes) == 0 {
				fmt.Fprintln(d.out, "No prices found")
				return nil
			}

			return renderTable(d.out, quotes)
		},
	}

	cmd.Flags().StringVar(&query.Commodity, "commodity", "", "commodity name, such as Wheat")
	cmd.Flags().StringVar(&query.State, "state", "", "only markets in this state")
	cmd.Flags().StringVar(&query.District, "district", "", "only markets in this district")
	cmd.Flags().IntVar(&query.Limit, "limit", 50, "maximum number of quotations")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "export the prices to an Excel workbook at this path")

	return cmd
}

func newGeocodeCommand(current func() *dashboard) *cobra.Command {
	var at domain.Coordinates

	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Look up the place at a latitude and longitude",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := current()

			place, err := d.geocode.Reverse(cmd.Context(), at)
			if err != nil {
				return failure(err, "")
			}

			fmt.Fprintf(d.out, "%s\n%s\n", place.Short(), place.Label)
			return nil
		},
	}

	cmd.Flags().Float64Var(&at.Latitude, "lat", 0, "latitude in decimal degrees")
	cmd.Flags().Float64Var(&at.Longitude, "lon", 0, "longitude in decimal degrees")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lon")

	return cmd
}
