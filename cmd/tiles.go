package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/natural-conversion/internal/tiles"
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Inspect the tile job array",
}

// -- tiles list --

var tilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tile in job index order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		planner := cfg.Tiles.Planner()
		all, err := planner.All()
		if err != nil {
			return err
		}

		year, _ := cmd.Flags().GetInt("year")
		all = filterTiles(all, year)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		}
		formatTiles(os.Stdout, all)
		fmt.Fprintf(os.Stderr, "%d of %d tiles\n", len(all), planner.Count())
		return nil
	},
}

// -- tiles index --

var tilesIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Write a polygon shapefile of the tile footprints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		all, err := cfg.Tiles.Planner().All()
		if err != nil {
			return err
		}
		year, _ := cmd.Flags().GetInt("year")
		all = filterTiles(all, year)

		out, _ := cmd.Flags().GetString("out")
		if err := tiles.WriteIndex(out, all); err != nil {
			return err
		}
		fmt.Printf("wrote %d tiles to %s\n", len(all), out)
		return nil
	},
}

func init() {
	tilesListCmd.Flags().Int("year", 0, "only tiles of this year")
	tilesListCmd.Flags().Bool("json", false, "print JSON instead of a table")

	tilesIndexCmd.Flags().Int("year", 0, "only tiles of this year")
	tilesIndexCmd.Flags().String("out", "tiles.shp", "output shapefile")

	tilesCmd.AddCommand(tilesListCmd)
	tilesCmd.AddCommand(tilesIndexCmd)
	rootCmd.AddCommand(tilesCmd)
}

func filterTiles(all []tiles.Tile, year int) []tiles.Tile {
	if year == 0 {
		return all
	}
	out := make([]tiles.Tile, 0, len(all))
	for _, t := range all {
		if t.Year == year {
			out = append(out, t)
		}
	}
	return out
}

// formatTiles writes a tabular list of tiles to w.
func formatTiles(out io.Writer, all []tiles.Tile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INDEX\tNAME\tYEAR\tWEST\tSOUTH\tEAST\tNORTH")
	for _, t := range all {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%g\t%g\t%g\t%g\n",
			t.Index, t.Name(), t.Year, t.Bounds.West, t.Bounds.South, t.Bounds.East, t.Bounds.North)
	}
	_ = w.Flush()
}
