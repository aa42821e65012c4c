// Package cli implements the composer command-line interface.
//
// composer drives the software engine through the compositor pipeline:
//
//   - preview: show the alternating scenes live in a window
//   - record: record the alternation to a Y4M file for a fixed duration
//   - snapshot: write one preview frame to a PNG, BMP or TIFF file
//
// Every command accepts --config with a TOML file; explicit flags override
// the file. --verbose enables debug logging for the CLI and the library.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/gogpu/compositor/engine/soft"
	"github.com/gogpu/compositor/pipeline"
)

// Version is reported by --version. It is set at build time.
var Version = "dev"

// CLI holds state shared by all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a CLI logging to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "composer",
		Short:        "Compose an image and a video into a live output",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose {
				c.Logger.SetLevel(log.DebugLevel)
			}
			install(c.Logger)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.previewCommand())
	root.AddCommand(c.recordCommand())
	root.AddCommand(c.snapshotCommand())
	return root
}

// Execute runs the CLI with os.Args.
func Execute(ctx context.Context) error {
	return New(os.Stderr, log.InfoLevel).RootCommand().ExecuteContext(ctx)
}

// open builds the software engine and a pipeline over it from cfg.
func open(ctx context.Context, cfg Config) (*pipeline.Pipeline, error) {
	e := soft.New(
		soft.WithFramerate(cfg.Framerate),
		soft.WithTimecode(cfg.Timecode),
		soft.WithHotReload(cfg.HotReload),
	)
	return pipeline.New(ctx, e, cfg.Image, cfg.Video,
		pipeline.WithResolution(cfg.Resolution()),
		pipeline.WithInterval(cfg.Interval.Duration),
		pipeline.WithLoop(cfg.Loop),
	)
}
