package benchmarks

import (
	"fmt"

	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/js0n-statham/Cab-Driving-Agent/cab"
)

// MatrixSummary describes the travel times between distinct locations
type MatrixSummary struct {
	Shape  []int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	// mean travel time of every origin
	OriginMeans []float64
}

func SummarizeMatrix(tm cab.TimeMatrix) MatrixSummary {
	all := make([]float64, 0)
	originMeans := make([]float64, len(tm))
	for from := range tm {
		origin := make([]float64, 0)
		for to := range tm[from] {
			if from == to {
				continue
			}
			for hour := range tm[from][to] {
				origin = append(origin, tm[from][to][hour]...)
			}
		}
		if len(origin) > 0 {
			originMeans[from] = stat.Mean(origin, nil)
		}
		all = append(all, origin...)
	}
	summary := MatrixSummary{Shape: tm.Shape(), OriginMeans: originMeans}
	if len(all) == 0 {
		return summary
	}
	summary.Min = floats.Min(all)
	summary.Max = floats.Max(all)
	summary.Mean, summary.StdDev = stat.MeanStdDev(all, nil)
	return summary
}

func printSummaryOfMatrix(summary MatrixSummary) {
	fmt.Printf("shape %v\n", aurora.Bold(summary.Shape))
	fmt.Printf("travel time min %s max %s mean %s std %s\n",
		aurora.Green(fmt.Sprintf("%.2f", summary.Min)),
		aurora.Red(fmt.Sprintf("%.2f", summary.Max)),
		aurora.Cyan(fmt.Sprintf("%.2f", summary.Mean)),
		aurora.Cyan(fmt.Sprintf("%.2f", summary.StdDev)))
	for from, mean := range summary.OriginMeans {
		fmt.Printf("  from %d: %s\n", from, aurora.Yellow(fmt.Sprintf("%.2f", mean)))
	}
}

func MatrixCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Generate or inspect travel time matrices",
	}
	cmd.AddCommand(matrixGenerateCommand(), matrixInspectCommand())
	return cmd
}

func matrixGenerateCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random travel time matrix as json",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := flags.EnvConfig()
			tm := cab.GenerateTimeMatrix(config, flags.source())
			if err := tm.Save(out); err != nil {
				return err
			}
			log.Info().Str("file", out).Ints("shape", tm.Shape()).Msg("time matrix saved")
			printSummaryOfMatrix(SummarizeMatrix(tm))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "time_matrix.json", "Output file")
	return cmd
}

func matrixInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [path]",
		Short: "Check a travel time matrix against the environment config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := cab.LoadTimeMatrix(args[0])
			if err != nil {
				return err
			}
			printSummaryOfMatrix(SummarizeMatrix(tm))
			if err := tm.Validate(flags.EnvConfig()); err != nil {
				fmt.Println(aurora.Red(err.Error()))
				return err
			}
			fmt.Println(aurora.Green("matrix matches the environment config"))
			return nil
		},
	}
}
