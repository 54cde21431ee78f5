package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/logrusorgru/aurora"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/js0n-statham/Cab-Driving-Agent/policies"
)

// ExportQTable copies the table and rewards one run of an experiment left in redis to out.jsonl
func ExportQTable(ctx context.Context, f *Flags, experiment string, run int, out string) error {
	if f.RedisAddr == "" {
		return errors.New("no redis address, set --redis-addr")
	}
	store := policies.NewRedisStore(f.RedisAddr, f.RedisPrefix+":"+experiment)
	defer store.Close()
	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", f.RedisAddr, err)
	}
	runStore := store.ForRun(run)

	q, err := runStore.LoadQTable(ctx)
	if err != nil {
		return err
	}
	if q.Len() == 0 {
		return fmt.Errorf("no q table stored for %s run %d", experiment, run)
	}
	if err := q.Record(out + ".jsonl"); err != nil {
		return err
	}
	log.Info().Str("file", out+".jsonl").Int("states", q.Len()).Msg("q table exported")

	rewards, err := runStore.EpisodeRewards(ctx)
	if err != nil {
		return err
	}
	if len(rewards) == 0 {
		fmt.Println(aurora.Yellow("no episode rewards stored"))
		return nil
	}
	mean, std := stat.MeanStdDev(rewards, nil)
	fmt.Printf("%s run %d: %d episodes, reward mean %s std %s, last %s\n",
		aurora.Bold(experiment), run, len(rewards),
		aurora.Cyan(fmt.Sprintf("%.2f", mean)),
		aurora.Cyan(fmt.Sprintf("%.2f", std)),
		aurora.Green(fmt.Sprintf("%.2f", rewards[len(rewards)-1])))
	return nil
}

func QTableCommand() *cobra.Command {
	var experiment, out string
	var run int
	cmd := &cobra.Command{
		Use:   "qtable",
		Short: "Export a q table stored in redis by train",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			return ExportQTable(ctx, flags, experiment, run, out)
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", qLearningPolicy, "Experiment the table belongs to")
	cmd.Flags().IntVar(&run, "run", 0, "Run of the experiment")
	cmd.Flags().StringVarP(&out, "out", "o", "qtable", "Output file, without the .jsonl extension")
	return cmd
}
