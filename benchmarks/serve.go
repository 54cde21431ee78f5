package benchmarks

import (
	"github.com/spf13/cobra"

	"github.com/js0n-statham/Cab-Driving-Agent/cab"
	"github.com/js0n-statham/Cab-Driving-Agent/server"
)

func ServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the environment over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := flags.EnvConfig()
			tm, err := flags.LoadTimeMatrix(config)
			if err != nil {
				return err
			}
			envs, err := cab.NewEnvConstructor(config, tm, flags.Seed)
			if err != nil {
				return err
			}

			ctx, done := interruptContext()
			defer done()
			return server.NewServer(ctx, flags.ServeAddr, envs.NewEnv(0)).Run()
		},
	}
	cmd.PersistentFlags().StringVar(&flags.ServeAddr, "addr", flags.ServeAddr, "Address to listen on")
	return cmd
}
