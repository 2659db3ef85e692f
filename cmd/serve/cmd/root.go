package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jayakrishnap100/california-housing-mlops/cmd/dependency"
	"github.com/jayakrishnap100/california-housing-mlops/internal/config"
	"github.com/jayakrishnap100/california-housing-mlops/internal/modelstore"
	"github.com/jayakrishnap100/california-housing-mlops/internal/server"
	"github.com/jayakrishnap100/california-housing-mlops/pkg/log"
)

var (
	v       = viper.New()
	cfgFile *string
)

var serveDescription = `
serve loads the model at models/latest once and answers GET /info and
POST /predict on 0.0.0.0:5000. It refuses to start when no trained model
can be loaded; run train first.
`

// rootCmd represents the serve command.
var rootCmd = &cobra.Command{
	Use:               "serve",
	Short:             "serve California housing price predictions over HTTP",
	Long:              serveDescription,
	Args:              cobra.NoArgs,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := dependency.LoadConfig(v, *cfgFile, "serve")
		if err != nil {
			return err
		}

		ctx, cancel := dependency.SignalContext()
		defer cancel()

		return runServe(ctx, cfg)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.GetLogger().Error("serve failed", log.ErrAttr(err))
		os.Exit(1)
	}
}

func init() {
	cfgFile = dependency.InitCommandAndConfig(rootCmd, v)

	defaults := config.New()
	flags := rootCmd.Flags()
	flags.String("listen-ip", defaults.Server.ListenIP, "listen ip, like: 0.0.0.0, 127.0.0.1")
	flags.Int("port", defaults.Server.Port, "http port")
	flags.Bool("metrics", defaults.Metrics.Enable, "serve Prometheus metrics at /metrics")

	dependency.BindFlag(v, rootCmd, "server.listenIP", "listen-ip")
	dependency.BindFlag(v, rootCmd, "server.port", "port")
	dependency.BindFlag(v, rootCmd, "metrics.enable", "metrics")
}

func runServe(ctx context.Context, cfg *config.Config) error {
	store, err := modelstore.New(cfg.Storage.ModelsDir)
	if err != nil {
		return err
	}

	m, dir, err := store.LoadLatest()
	if err != nil {
		log.GetLogger().Error("no trained model available, run train first", log.ErrAttr(err))
		return err
	}

	svc, err := server.New(m, m.FeatureNames(), server.WithMetrics(cfg.Metrics.Enable))
	if err != nil {
		return err
	}

	log.GetLogger().Info("loaded model", log.ArtifactPathKey, dir, log.HyperParamsKey, m.GetParams())
	return svc.Run(ctx, cfg.Addr(), cfg.Server.ShutdownTimeout)
}
