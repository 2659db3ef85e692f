package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jayakrishnap100/california-housing-mlops/cmd/dependency"
	"github.com/jayakrishnap100/california-housing-mlops/internal/config"
	"github.com/jayakrishnap100/california-housing-mlops/internal/modelstore"
	"github.com/jayakrishnap100/california-housing-mlops/internal/tracking"
	"github.com/jayakrishnap100/california-housing-mlops/internal/trainer"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

var (
	v       = viper.New()
	cfgFile *string
)

var trainDescription = `
train fits a random forest on the California housing table, logs its
parameters and metrics to the experiment tracker, saves the model into
models/model_<YYYYMMDD_HHMMSS>/model.pkl, repoints models/latest and
registers a new model version.

Run without flags to train 100 trees of depth 10.
`

// rootCmd represents the train command.
var rootCmd = &cobra.Command{
	Use:               "train",
	Short:             "train the California housing price model",
	Long:              trainDescription,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := dependency.LoadConfig(v, *cfgFile, "train")
		if err != nil {
			return err
		}

		ctx, cancel := dependency.SignalContext()
		defer cancel()

		return runTrain(ctx, cfg)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.GetLogger().Error("train failed", log.ErrAttr(err))
		os.Exit(1)
	}
}

func init() {
	cfgFile = dependency.InitCommandAndConfig(rootCmd, v)

	defaults := config.New()
	flags := rootCmd.Flags()
	flags.Int("n-estimators", defaults.Train.NEstimators, "number of trees in the forest")
	flags.Int("max-depth", defaults.Train.MaxDepth, "maximum depth of each tree")
	flags.Int("workers", defaults.Train.Workers, "trees fitted concurrently, 0 uses every CPU")
	flags.String("dataset", defaults.Dataset.Source, "dataset source: california or csv")
	flags.String("csv", defaults.Dataset.CSVPath, "headered CSV with the feature columns and PRICE, used with --dataset=csv")
	flags.Bool("progress", defaults.Train.Progress, "render a progress bar while fitting")

	dependency.BindFlag(v, rootCmd, "train.nEstimators", "n-estimators")
	dependency.BindFlag(v, rootCmd, "train.maxDepth", "max-depth")
	dependency.BindFlag(v, rootCmd, "train.workers", "workers")
	dependency.BindFlag(v, rootCmd, "dataset.source", "dataset")
	dependency.BindFlag(v, rootCmd, "dataset.csvPath", "csv")
	dependency.BindFlag(v, rootCmd, "train.progress", "progress")
}

func runTrain(ctx context.Context, cfg *config.Config) error {
	tracker, err := tracking.Open(cfg.Storage.TrackingDir)
	if err != nil {
		return err
	}
	defer tracker.Close()

	store, err := modelstore.New(cfg.Storage.ModelsDir)
	if err != nil {
		return err
	}

	var opts []trainer.Option
	if cfg.Train.Progress {
		bar := progressbar.NewOptions(cfg.Train.NEstimators,
			progressbar.OptionSetDescription("fitting trees"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts, trainer.WithProgress(func(done, total int) {
			_ = bar.Set(done)
		}))
		defer bar.Finish()
	}

	t, err := trainer.New(trainer.Config{
		NEstimators:         cfg.Train.NEstimators,
		MaxDepth:            cfg.Train.MaxDepth,
		TestSize:            cfg.Train.TestSize,
		RandomState:         cfg.Train.RandomState,
		ExperimentName:      cfg.Train.ExperimentName,
		RegisteredModelName: cfg.Train.RegisteredModelName,
		ExampleRows:         trainer.DefaultExampleRows,
		Workers:             cfg.Train.Workers,
		Plot:                cfg.Train.Plot,
	}, cfg.Loader(), tracker, store, opts...)
	if err != nil {
		return err
	}

	result, err := t.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Model saved in: %s\n", result.VersionDir)
	fmt.Printf("Latest model symlink: %s\n", result.LatestPath)
	fmt.Printf("Registered %s version %d (run %s)\n", cfg.Train.RegisteredModelName, result.ModelVersion, result.RunID)
	return nil
}
