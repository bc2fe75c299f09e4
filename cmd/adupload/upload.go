package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	uploader "github.com/Skryldev/adimage-uploader"
	"github.com/Skryldev/adimage-uploader/adapters/graphapi"
	"github.com/Skryldev/adimage-uploader/core"
	"github.com/Skryldev/adimage-uploader/credentials"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
	"github.com/Skryldev/adimage-uploader/hooks"
	"github.com/Skryldev/adimage-uploader/progress"
)

type uploadFlags struct {
	account     string
	input       string
	output      string
	format      string
	concurrency int
	dryRun      bool
}

func bindUploadFlags(cmd *cobra.Command, f *uploadFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.account, "account", "a", "", "Facebook ad account ID")
	fs.StringVarP(&f.input, "input", "i", "", "input ZIP file containing images")
	fs.StringVarP(&f.output, "output", "o", "", "output file path")
	fs.StringVarP(&f.format, "format", "f", "", "output format (csv, json, excel, html); default from the output extension")
	fs.IntVarP(&f.concurrency, "concurrent", "c", 0, "number of concurrent uploads")
	fs.BoolVar(&f.dryRun, "dry-run", false, "validate and optimize without uploading; hashes are computed locally")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
}

func newUploadCmd(a *app) *cobra.Command {
	flags := &uploadFlags{}
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload every image in a ZIP archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runUpload(cmd.Context(), flags)
		},
	}
	bindUploadFlags(cmd, flags)
	return cmd
}

func (a *app) runUpload(ctx context.Context, f *uploadFlags) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger, err := hooks.NewZerologLogger(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	tracker := progress.New(0, progress.WithWriter(a.stdout))
	defer tracker.Stop()
	metrics := hooks.NewInMemoryMetrics()
	opts := uploader.Options{
		Observer: tracker,
		Logger:   logger,
		Hooks:    []core.Hook{hooks.NewLoggingHook(logger), hooks.NewMetricsHook(metrics)},
	}
	if f.dryRun {
		opts.Uploader = graphapi.NewDryRun(logger)
		opts.Credentials = credentials.Static("")
	}

	up, err := uploader.New(cfg, opts)
	if err != nil {
		tracker.Error("Error processing images")
		logger.Error("invalid configuration", "error", err)
		return err
	}
	defer up.Close()

	summary, err := up.Run(ctx, uploader.RunParams{
		AccountID:   f.account,
		InputPath:   f.input,
		OutputPath:  f.output,
		Format:      f.format,
		Concurrency: f.concurrency,
	})
	logger.Debug("stage metrics", metrics.Snapshot().Fields()...)
	if err != nil {
		tracker.Error("Error processing images")
		logger.Error("run failed", "kind", string(apperrors.KindOf(err)), "error", apperrors.Message(err))
		if summary != nil {
			if summary.ReportPath != "" {
				fmt.Fprintf(a.stdout, "Partial results written to %s\n", summary.ReportPath)
			}
			printSummary(a, tracker, summary)
		}
		return err
	}

	tracker.Success(fmt.Sprintf("Processing complete. Results written to %s", summary.ReportPath))
	printSummary(a, tracker, summary)
	return nil
}

func printSummary(a *app, tracker *progress.Tracker, s *core.Summary) {
	fmt.Fprintf(a.stdout, "Successfully processed %d out of %d images.\n", s.Succeeded, s.Total)
	if len(s.Failed) == 0 {
		return
	}
	tracker.Info("Failed images:")
	for _, p := range s.Failed {
		fmt.Fprintf(a.stdout, "- %s\n", p)
	}
}
