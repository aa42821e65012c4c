package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gogpu/compositor/pipeline"
	"github.com/gogpu/compositor/snapshot"
)

func (c *CLI) snapshotCommand() *cobra.Command {
	var (
		src     sourceFlags
		path    string
		index   int
		viaGPU  bool
		discard int
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write one preview frame to an image file",
		Long: `Snapshot shows one of the alternated scenes (0: image, 1: video) on the
preview output and writes the next frame to a PNG, BMP or TIFF file chosen by
extension. With --gpu the frame is uploaded to a GPU texture and read back
through the format converter before it is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			cfg, err := src.load(cmd.Flags())
			if err != nil {
				return err
			}
			if path == "" {
				path = "snapshot-" + uuid.NewString() + ".png"
			}
			if _, err := snapshot.FormatFromPath(path); err != nil {
				return err
			}

			p, err := open(ctx, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			scenes := p.Scenes()
			if index < 0 || index >= len(scenes) {
				return fmt.Errorf("scene index %d out of range [0, %d)", index, len(scenes))
			}
			if err := p.Multiplexer().UpdateScene(ctx, pipeline.PreviewOutput, scenes[index]); err != nil {
				return err
			}
			// Pending frames show the previous scene, and so may the one
			// tick that was rendering during the swap.
			p.TryFrame()
			for range discard {
				if _, err := p.AwaitFrame(ctx); err != nil {
					return err
				}
			}

			f, err := p.AwaitFrame(ctx)
			if err != nil {
				return err
			}
			if viaGPU {
				if err := writeViaGPU(ctx, path, f); err != nil {
					return err
				}
			} else if err := snapshot.WriteFrame(path, f); err != nil {
				return err
			}
			logger.Info("Snapshot written", "path", path, "seq", f.Seq, "size", fmt.Sprintf("%dx%d", f.Width, f.Height))
			return nil
		},
	}
	src.register(cmd.Flags())
	cmd.Flags().StringVarP(&path, "output", "o", "", "output image (default snapshot-<uuid>.png)")
	cmd.Flags().IntVar(&index, "scene", 0, "scene to show: 0 image, 1 video")
	cmd.Flags().IntVar(&discard, "skip", 1, "frames to skip after switching scenes")
	cmd.Flags().BoolVar(&viaGPU, "gpu", false, "round-trip the frame through GPU readback")
	return cmd
}
