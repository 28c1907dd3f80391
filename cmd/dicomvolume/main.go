package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"dicomvolume/pkg/config"
	"dicomvolume/pkg/log"
	"dicomvolume/pkg/presenter"
	"dicomvolume/pkg/reconstruction"
)

var longHelp = strings.TrimSpace(`
Reconstruct 3D volumes and isosurface meshes from a folder of DICOM slices.

Files are grouped by series and ordered by instance number. Every series
with at least two slices of the same shape is stacked into a volume, and
each volume is meshed at the configured density thresholds
(soft tissue, dense tissue and bone by default).

Without --out, results are reported through the log only.
`)

var exampleUsage = strings.TrimSpace(`
  dicomvolume ./scans --out ./render
  dicomvolume --config dicomvolume.toml --workers 4
  dicomvolume generate --out ./phantom
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := config.DefaultConfig()
	var (
		cfgPath string
		noWait  bool
	)

	root := &cobra.Command{
		Use:           "dicomvolume [folder]",
		Short:         "Reconstruct 3D volumes and isosurfaces from DICOM slices",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if err := loadConfig(cfg, cfgPath, changed); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return err
			}
			if noWait {
				cfg.Output.WaitForExit = false
			}

			err := run(cmd.Context(), cfg, args)
			if cfg.Output.WaitForExit {
				waitForEnter(os.Stdin, os.Stdout)
			}
			return err
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "config file (YAML, or TOML with a .toml extension)")
	flags.StringVar(&cfg.Output.Dir, "out", cfg.Output.Dir, "write images, tensors, meshes and text under this directory")
	flags.IntVar(&cfg.Processing.Workers, "workers", cfg.Processing.Workers, "number of series processed concurrently")
	flags.IntVar(&cfg.Processing.MaxVoxels, "max-voxels", cfg.Processing.MaxVoxels, "largest volume, in voxels, that will be built")
	flags.StringVar(&cfg.Output.LogFile, "log-file", cfg.Output.LogFile, "also write the log to this file (empty disables)")
	flags.BoolVarP(&cfg.Output.Verbose, "verbose", "v", cfg.Output.Verbose, "enable debug logging")
	flags.BoolVar(&noWait, "no-wait", false, "exit without waiting for Enter")

	root.AddCommand(newGenerateCommand())
	root.AddCommand(newConfigCommand())
	return root
}

// loadConfig layers the config file, then DICOMVOLUME_* variables, under the
// flags already parsed into cfg.
func loadConfig(cfg *config.Config, path string, changed map[string]bool) error {
	if path != "" {
		fileCfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		mergeFlags(fileCfg, cfg, changed)
		*cfg = *fileCfg
	}
	if err := config.ApplyEnv(cfg, changed, os.Getenv); err != nil {
		return err
	}
	return cfg.Validate()
}

// mergeFlags copies every explicitly set flag value from flagCfg into dst.
func mergeFlags(dst, flagCfg *config.Config, changed map[string]bool) {
	if changed["out"] {
		dst.Output.Dir = flagCfg.Output.Dir
	}
	if changed["workers"] {
		dst.Processing.Workers = flagCfg.Processing.Workers
	}
	if changed["max-voxels"] {
		dst.Processing.MaxVoxels = flagCfg.Processing.MaxVoxels
	}
	if changed["log-file"] {
		dst.Output.LogFile = flagCfg.Output.LogFile
	}
	if changed["verbose"] {
		dst.Output.Verbose = flagCfg.Output.Verbose
	}
}

func run(ctx context.Context, cfg *config.Config, args []string) error {
	logger, err := log.NewZerologAdapter(log.Options{Verbose: cfg.Output.Verbose, File: cfg.Output.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	defer logger.Close()

	folder, err := folderArg(args)
	if err != nil {
		logger.Error("no folder path provided", log.Err(err))
		return err
	}
	logger.Info("starting DICOM analysis", log.String("folder", folder))

	params, err := reconstruction.ParamsFromConfig(cfg, folder)
	if err != nil {
		logger.Error("invalid isosurface levels", log.Err(err))
		return err
	}

	presenters := []presenter.Presenter{presenter.NewLogPresenter(logger)}
	if cfg.Output.Dir != "" {
		dir, err := presenter.NewDirPresenter(cfg.Output.Dir, logger)
		if err != nil {
			logger.Error("cannot create output directory", log.Err(err))
			return err
		}
		presenters = append(presenters, dir)
	}
	session := presenter.NewSession("dicom_viewer", presenters...)
	defer session.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := reconstruction.NewReconstructor(params, logger, session).Process(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("interrupted")
		} else {
			logger.Error("DICOM analysis failed", log.Err(err))
		}
		return err
	}

	fmt.Println(summary.Text())
	if cfg.Output.Dir != "" {
		logger.Info("DICOM analysis complete", log.String("output", cfg.Output.Dir))
	} else {
		logger.Info("DICOM analysis complete")
	}
	return nil
}

// folderArg returns the folder argument, prompting for it when absent.
func folderArg(args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	folder, err := promptFolder(os.Stdin, os.Stdout)
	if err != nil {
		return "", err
	}
	if folder == "" {
		return "", errors.New("empty folder path")
	}
	return folder, nil
}
