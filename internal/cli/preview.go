package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/compositor/display"
	"github.com/gogpu/compositor/pipeline"
)

func (c *CLI) previewCommand() *cobra.Command {
	var (
		src      sourceFlags
		headless bool
		record   bool
		path     string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the alternating scenes live",
		Long: `Preview alternates the preview output between the image and the video
scene every interval and shows it in a window until the window is closed.
With --record a recording of the same alternation runs in the background.
With --headless no window is opened and preview runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
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

			run := p.Start(ctx)
			defer run.Stop()

			recDone := make(chan error, 1)
			if record {
				go func() {
					rec, err := p.Record(ctx, cfg.Record.Path, cfg.Record.Duration.Duration)
					if err == nil {
						logger.Infof("Recorded %s: %d scene swaps", rec.Path, rec.Swaps)
					}
					recDone <- err
				}()
			} else {
				recDone <- nil
			}

			if headless {
				err = waitHeadless(ctx, p)
			} else {
				w := display.New(p,
					display.WithTitle("composer"),
					display.WithImageFunc(p.FrameImage),
					display.WithOnClose(cancel),
				)
				err = w.Run()
				logger.Info("Window closed", "frames", w.Presenter().Updates())
			}
			cancel()
			return errors.Join(err, ignoreCanceled(<-recDone))
		},
	}
	src.register(cmd.Flags())
	def := DefaultConfig().Record
	cmd.Flags().BoolVar(&headless, "headless", false, "run without a window")
	cmd.Flags().BoolVar(&record, "record", false, "record in the background")
	cmd.Flags().StringVarP(&path, "output", "o", def.Path, "recording file")
	cmd.Flags().DurationVarP(&duration, "duration", "d", def.Duration.Duration, "recording length")
	return cmd
}

// waitHeadless drains the preview output until ctx ends, logging the
// newest frame once per second.
func waitHeadless(ctx context.Context, p *pipeline.Pipeline) error {
	logger := loggerFromContext(ctx)
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if f, ok := p.TryFrame(); ok {
				st := p.Preview().Drainer().Stats()
				logger.Debug("Preview frame", "seq", f.Seq, "pts", f.PTS, "dropped", st.Dropped)
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
