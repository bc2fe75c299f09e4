package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Skryldev/adimage-uploader/config"
	apperrors "github.com/Skryldev/adimage-uploader/errors"
)

const version = "1.0.0"

// app carries what every subcommand shares.
type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

func (a *app) loadConfig() (config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return config.Config{}, apperrors.New(apperrors.KindConfig, "config.load", err)
	}
	return cfg, nil
}

// newRootCmd builds the command tree.  The root command accepts the upload
// flags directly so `adupload -a ... -i ... -o ...` keeps working.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	flags := &uploadFlags{}

	root := &cobra.Command{
		Use:           "adupload",
		Short:         "Upload images to Facebook Ads and generate a report with image hashes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runUpload(cmd.Context(), flags)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: config.json or config.yaml in the working directory)")
	bindUploadFlags(root, flags)

	root.AddCommand(newUploadCmd(a), newTokenCmd(a))
	return root
}
