package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/framecast"
	"github.com/bft-labs/framecast/internal/cliconfig"
	"github.com/bft-labs/framecast/pkg/log"
	"github.com/bft-labs/framecast/plugins/configwatcher"
	"github.com/bft-labs/framecast/plugins/mqttstats"
	"github.com/bft-labs/framecast/plugins/resourcegating"
	"github.com/bft-labs/framecast/plugins/statspush"
)

const helpDescription = `
Render a scene headlessly and serve the latest frame over HTTP.

Highlights:
  - Frames are read back asynchronously, so rendering never waits on a client.
  - GET /frame returns a JPEG; POST /api/frame returns base64 with size and format.
  - Pointer and wheel input posted to /api/input (or /ws/input) drives the camera.
  - Configure via file, env (FRAMECAST_*), or flags; fps and encoding reload live.
`

var longHelp = "framecast\n\n" + strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  framecast --listen 127.0.0.1:7878 --fps 60
  framecast --config $HOME/.framecast/config.toml --mqtt-broker localhost:1883
  framecast grab --addr http://127.0.0.1:7878 -o frame.jpg
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "framecast",
		Short:         "Headless frame-streaming bridge",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			} else {
				cfgFile = ""
			}

			// Env overrides file, flags override env.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cfgFile)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.framecast/config.toml)")
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	f.IntVar(&cfg.Width, "width", cfg.Width, "render width in pixels")
	f.IntVar(&cfg.Height, "height", cfg.Height, "render height in pixels")
	f.Float64Var(&cfg.TargetFPS, "fps", cfg.TargetFPS, "target render rate")
	f.Float64Var(&cfg.MinFPS, "min-fps", cfg.MinFPS, "lower the rate down to this floor while readbacks fall behind (0 disables)")
	f.StringVar(&cfg.Format, "format", cfg.Format, "default image format (jpeg or png)")
	f.IntVar(&cfg.Quality, "quality", cfg.Quality, "default JPEG quality (1-100)")
	f.IntVar(&cfg.PreRollFrames, "preroll", cfg.PreRollFrames, "frames rendered before the first readback")
	f.IntVar(&cfg.ReadbackDepth, "readback-depth", cfg.ReadbackDepth, "maximum readbacks in flight")
	f.IntVar(&cfg.SampleWindow, "window", cfg.SampleWindow, "number of samples averaged in stats")
	f.DurationVar(&cfg.LoopInterval, "loop-interval", cfg.LoopInterval, "host loop cadence")
	f.DurationVar(&cfg.StatsLogInterval, "stats-interval", cfg.StatsLogInterval, "stats log interval (0 disables)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.BoolVar(&cfg.NoHUD, "no-hud", cfg.NoHUD, "disable the frame counter overlay")

	f.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "publish stats to this MQTT broker (optional)")
	f.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT topic prefix")
	f.DurationVar(&cfg.MQTTInterval, "mqtt-interval", cfg.MQTTInterval, "MQTT publish interval")
	f.StringVar(&cfg.PushURL, "push-url", cfg.PushURL, "POST stats to this URL (optional)")
	f.StringVar(&cfg.PushKey, "push-key", cfg.PushKey, "bearer token for --push-url")
	f.DurationVar(&cfg.PushInterval, "push-interval", cfg.PushInterval, "stats push interval")

	root.AddCommand(newGrabCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), root.Version)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "framecast: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, cfgFile string) error {
	logger := cliconfig.Logger(cfg.LogLevel)
	zl := logger.Logger()
	zl.Info().Interface("config", cfg.Masked()).Str("file", cfgFile).Msg("configuration")

	opts := []framecast.Option{
		framecast.WithLogger(logger),
		configwatcher.WithDefaultConfigWatcher(),
	}
	if cfg.MinFPS > 0 {
		gc := resourcegating.DefaultConfig()
		gc.MaxFPS = cfg.TargetFPS
		gc.MinFPS = cfg.MinFPS
		opts = append(opts, resourcegating.WithResourceGating(gc))
	}
	if cfg.MQTTBroker != "" {
		mc := mqttstats.DefaultConfig()
		mc.Broker = cfg.MQTTBroker
		mc.TopicPrefix = cfg.MQTTTopic
		mc.Interval = cfg.MQTTInterval
		opts = append(opts, mqttstats.WithMQTTStats(mc))
	}
	if cfg.PushURL != "" {
		pc := statspush.DefaultConfig()
		pc.URL = cfg.PushURL
		pc.AuthKey = cfg.PushKey
		pc.Interval = cfg.PushInterval
		opts = append(opts, statspush.WithStatsPush(pc))
	}

	if err := framecast.Run(ctx, cfg.BridgeConfig(cfgFile), opts...); err != nil {
		logger.Error("framecast stopped", log.Err(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
