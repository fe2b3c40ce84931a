package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/market"
)

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect and convert price series files",
	Long: `Inspect and convert price series in CSV or Parquet.

Examples:
  tqbt data info data/tqqq.csv
  tqbt data convert data/tqqq.csv data/tqqq.parquet --from 2015-01-01`,
}

var dataInfoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize a price series",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataInfo,
}

var dataConvertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a series between CSV and Parquet",
	Args:  cobra.ExactArgs(2),
	RunE:  runDataConvert,
}

var (
	dataFormat    string
	dataOutFormat string
	dataFrom      string
	dataTo        string
)

func init() {
	rootCmd.AddCommand(dataCmd)
	dataCmd.AddCommand(dataInfoCmd)
	dataCmd.AddCommand(dataConvertCmd)

	dataCmd.PersistentFlags().StringVar(&dataFormat, "format", "", "input format (csv, parquet); default by extension")
	dataCmd.PersistentFlags().StringVar(&dataFrom, "from", "", "first bar time to include (YYYY-MM-DD)")
	dataCmd.PersistentFlags().StringVar(&dataTo, "to", "", "bar time to stop before (YYYY-MM-DD, exclusive)")
	dataConvertCmd.Flags().StringVar(&dataOutFormat, "out-format", "", "output format (csv, parquet); default by extension")
}

func dataSeries(path string) (market.Series, error) {
	return loadSeries(config.DataConfig{Path: path, Format: dataFormat, From: dataFrom, To: dataTo})
}

func runDataInfo(cmd *cobra.Command, args []string) error {
	s, err := dataSeries(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "File:          %s\n", args[0])
	fmt.Fprintf(w, "Bars:          %d\n", s.Len())

	first, ok := s.First()
	if !ok {
		return nil
	}
	last, _ := s.Last()

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range s {
		lo = math.Min(lo, b.Close)
		hi = math.Max(hi, b.Close)
	}

	fmt.Fprintf(w, "Start:         %s\n", first.Time.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", last.Time.Format(time.RFC3339))
	fmt.Fprintf(w, "First Close:   %.4f\n", first.Close)
	fmt.Fprintf(w, "Last Close:    %.4f\n", last.Close)
	fmt.Fprintf(w, "Min Close:     %.4f\n", lo)
	fmt.Fprintf(w, "Max Close:     %.4f\n", hi)
	fmt.Fprintf(w, "Buy & Hold:    %.2f%%\n", (last.Close/first.Close-1)*100)
	return nil
}

func runDataConvert(cmd *cobra.Command, args []string) error {
	s, err := dataSeries(args[0])
	if err != nil {
		return err
	}
	if err := market.Save(args[1], dataOutFormat, s); err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}
	logger.Info().Str("in", args[0]).Str("out", args[1]).Int("bars", s.Len()).Msg("series converted")
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bars to %s\n", s.Len(), args[1])
	return nil
}
