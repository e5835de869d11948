package main

import (
	"github.com/spf13/cobra"
)

// options holds the command-line flags. Flags override the config file.
type options struct {
	configPath string
	imagePath  string
	noCapture  bool
	logLevel   string
}

func newRootCommand(d deps) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "caption [prompt]",
		Short: "Capture a camera frame and print a short caption",
		Long: `Capture a single frame from the camera and print a one-sentence caption.

With a prompt the caption is guided by it; the model may still ignore it.
Without one the model describes the frame unprompted. Captions shorter than
five characters are replaced by a fixed fallback sentence.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if len(args) == 1 {
				prompt = args[0]
			}
			return run(cmd.Context(), opts, prompt, cmd.OutOrStdout(), d)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file path (.toml, .yaml)")
	flags.StringVar(&opts.imagePath, "image", "", "Caption this image file instead of the camera output path")
	flags.BoolVar(&opts.noCapture, "no-capture", false, "Skip camera capture and caption the existing file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return rootCmd
}
