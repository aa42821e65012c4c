package cli

import (
	"time"

	"github.com/spf13/cobra"
)

func (c *CLI) recordCommand() *cobra.Command {
	var (
		src      sourceFlags
		path     string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record the scene alternation to a Y4M file",
		Long: `Record alternates between the image and the video scene and writes the
result to a YUV4MPEG2 file. An existing file is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg, err := src.load(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") {
				cfg.Record.Path = path
			}
			if cmd.Flags().Changed("duration") {
				cfg.Record.Duration = Duration{duration}
			}

			p, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			start := time.Now()
			rec, err := p.Record(ctx, cfg.Record.Path, cfg.Record.Duration.Duration)
			if err != nil {
				return err
			}
			logger.Infof("Recorded %s: %d scene swaps (%s)", rec.Path, rec.Swaps,
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	src.register(cmd.Flags())
	def := DefaultConfig().Record
	cmd.Flags().StringVarP(&path, "output", "o", def.Path, "output file")
	cmd.Flags().DurationVarP(&duration, "duration", "d", def.Duration.Duration, "recording length")
	return cmd
}
