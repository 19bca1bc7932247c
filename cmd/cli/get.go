package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/yourusername/nicedowns-go/internal/app"
	"github.com/yourusername/nicedowns-go/internal/domain"
	"github.com/yourusername/nicedowns-go/pkg/logger"
)

var getCmd = &cobra.Command{
	Use:   "get [url-or-username]",
	Short: "Resolve and save media in-process, without the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dir, _ := cmd.Flags().GetString("dir")
		asset, _ := cmd.Flags().GetInt("asset")
		all, _ := cmd.Flags().GetBool("all")
		verbose, _ := cmd.Flags().GetBool("verbose")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runGet(ctx, cmd.OutOrStdout(), getOptions{
			configPath: configPath,
			dir:        dir,
			asset:      asset,
			all:        all,
			verbose:    verbose,
			input:      args[0],
		})
	},
}

type getOptions struct {
	configPath string
	dir        string
	asset      int
	all        bool
	verbose    bool
	input      string
}

func runGet(ctx context.Context, out io.Writer, opts getOptions) error {
	config, err := app.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dir != "" {
		dir, err := filepath.Abs(opts.dir)
		if err != nil {
			return err
		}
		config.Delivery.CompletedDir = dir
		config.Delivery.IncomingDir = filepath.Join(dir, ".incoming")
	}
	// A running server holds the cache lock
	config.Cache.Enabled = false

	level := "warn"
	if opts.verbose {
		level = "info"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console", OutputPath: "stderr"})
	if err != nil {
		return err
	}
	defer log.Sync()

	services, err := app.NewServices(config, logger.NewSingleLoggerAdapter(log), app.ServicesOptions{
		Progress: func(total int64, description string) io.Writer {
			return progressbar.DefaultBytes(total, description)
		},
		DisableNotifications: true,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	sub, err := services.Orchestrator.Submit(ctx, opts.input)
	if err != nil {
		if sub != nil {
			return errors.New(sub.UserMessage)
		}
		return errors.New(domain.UserMessage(err))
	}
	printSubmission(out, sub)

	assets := sub.Descriptor.Assets
	var selected []domain.AssetVariant
	switch {
	case opts.all:
		selected = assets
	case opts.asset >= 1 && opts.asset <= len(assets):
		selected = assets[opts.asset-1 : opts.asset]
	default:
		return fmt.Errorf("asset #%d does not exist (1-%d)", opts.asset, len(assets))
	}

	var failed int
	for _, a := range selected {
		fmt.Fprintf(out, "\n[%s %s]\n", a.MediaType, a.Quality)
		attempt, err := services.Orchestrator.RequestDelivery(ctx, a.ID, "")
		if attempt != nil {
			fmt.Fprintln(out)
			printAttempt(out, attempt)
		}
		if err != nil {
			failed++
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", failed, len(selected))
	}
	return nil
}

func init() {
	getCmd.Flags().StringP("config", "c", "", "Config file (default search path if empty)")
	getCmd.Flags().StringP("dir", "d", "", "Save into this directory instead of the configured one")
	getCmd.Flags().IntP("asset", "a", 1, "Asset number to save")
	getCmd.Flags().Bool("all", false, "Save every asset")
	getCmd.Flags().BoolP("verbose", "v", false, "Log pipeline progress")
}
