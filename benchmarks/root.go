package benchmarks

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/js0n-statham/Cab-Driving-Agent/util"
)

var flags = DefaultFlags()

func AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&flags.SavePath, "save", "s", flags.SavePath, "Save the result data in the specified folder")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", flags.ConfigPath, "Folder containing cab.yaml")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", flags.Debug, "Enable debug logging")
	cmd.PersistentFlags().Uint64Var(&flags.Seed, "seed", flags.Seed, "Random seed, 0 seeds with the current time")

	cmd.PersistentFlags().IntVar(&flags.Locations, "locations", flags.Locations, "Number of locations")
	cmd.PersistentFlags().IntVar(&flags.HoursPerDay, "hours", flags.HoursPerDay, "Hours in a day")
	cmd.PersistentFlags().IntVar(&flags.DaysPerWeek, "days", flags.DaysPerWeek, "Days in a week")
	cmd.PersistentFlags().Float64Var(&flags.CostPerHour, "cost", flags.CostPerHour, "Cost per hour")
	cmd.PersistentFlags().Float64Var(&flags.RevenuePerHour, "revenue", flags.RevenuePerHour, "Revenue per hour of ride")
	cmd.PersistentFlags().IntVar(&flags.MaxRequests, "max-requests", flags.MaxRequests, "Maximum number of requests offered at once")
	cmd.PersistentFlags().Float64Var(&flags.EpisodeHours, "episode-hours", flags.EpisodeHours, "Length of an episode in hours")
	cmd.PersistentFlags().StringVar(&flags.TimeMatrix, "time-matrix", flags.TimeMatrix, "Travel time matrix (.npy or .json), generated when empty")

	cmd.PersistentFlags().StringVar(&flags.RedisAddr, "redis-addr", flags.RedisAddr, "Redis address to store the q tables, disabled when empty")
	cmd.PersistentFlags().StringVar(&flags.RedisPrefix, "redis-prefix", flags.RedisPrefix, "Prefix of the redis keys")
}

// applyConfig loads cab.yaml and the environment over the defaults and
// then restores the flags given explicitly on the command line
func applyConfig(cmd *cobra.Command) error {
	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})
	if err := util.LoadConfig(flags.ConfigPath, "cab", flags); err != nil {
		return err
	}
	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func GetRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           "cab",
		Short:         "Single driver ride hailing environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfig(cmd); err != nil {
				return err
			}
			util.SetupLogger(flags.Debug)
			return flags.EnvConfig().Validate()
		},
	}
	AddFlags(rootCommand)
	// adding the subcommands here
	rootCommand.AddCommand(TrainCommand())
	rootCommand.AddCommand(ServeCommand())
	rootCommand.AddCommand(MatrixCommand())
	rootCommand.AddCommand(InspectCommand())
	rootCommand.AddCommand(QTableCommand())
	return rootCommand
}
