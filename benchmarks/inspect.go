package benchmarks

import (
	"context"
	"fmt"

	"github.com/logrusorgru/aurora"
	"github.com/spf13/cobra"

	"github.com/js0n-statham/Cab-Driving-Agent/cab"
	"github.com/js0n-statham/Cab-Driving-Agent/types"
)

// Inspect plays a few random steps and prints the requests, the chosen actions and the rewards
func Inspect(f *Flags, steps int) error {
	config := f.EnvConfig()
	tm, err := f.LoadTimeMatrix(config)
	if err != nil {
		return err
	}
	envs, err := cab.NewEnvConstructor(config, tm, f.Seed)
	if err != nil {
		return err
	}
	env := envs.NewEnv(0)
	driver := env.Driver()
	policy := types.NewRandomPolicyWithSeed(f.Seed + 1)

	fmt.Printf("actions %d, states %d, encoding %d\n",
		aurora.Bold(config.ActionSpaceSize()), aurora.Bold(config.StateSpaceSize()), aurora.Bold(config.EncodingSize()))

	eCtx := types.NewEpisodeContext(context.Background(), 0)
	defer eCtx.Cancel()
	state, err := env.Reset(eCtx)
	if err != nil {
		return err
	}
	total := 0.0
	for i := 0; i < steps; i++ {
		obs := state.(*cab.Observation)
		if obs.Terminal {
			fmt.Println(aurora.Yellow("episode over"))
			break
		}
		fmt.Printf("%s %s requests %v\n", aurora.Magenta(fmt.Sprintf("%3d", i)), aurora.Bold(obs.State), obs.Requests)

		sCtx := &types.StepContext{Step: i, EpisodeContext: eCtx}
		action, ok := policy.NextAction(sCtx, obs, obs.Actions())
		if !ok {
			break
		}
		tr, err := driver.NextState(obs.State, action.(cab.Action), tm)
		if err != nil {
			return err
		}
		next, reward, err := env.Step(action, sCtx)
		if err != nil {
			return err
		}
		total += reward

		rewardStr := fmt.Sprintf("%+.1f", reward)
		colored := aurora.Green(rewardStr)
		if reward < 0 {
			colored = aurora.Red(rewardStr)
		}
		fmt.Printf("    take %s wait %.0f transit %.0f ride %.0f reward %s -> %s\n",
			aurora.Cyan(action.Hash()), tr.Wait, tr.Transit, tr.Ride, colored, next.(*cab.Observation).State)
		state = next
	}
	fmt.Printf("total reward %s after %.0f hours\n", aurora.Bold(fmt.Sprintf("%.1f", total)), env.Clock())
	return nil
}

func InspectCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Play random steps and print what the environment does",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Inspect(flags, steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 10, "Number of steps to play")
	return cmd
}
