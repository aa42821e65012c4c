//go:build nogpu

package cli

import (
	"context"
	"errors"

	"github.com/gogpu/compositor"
)

func writeViaGPU(context.Context, string, compositor.Frame) error {
	return errors.New("built without GPU support")
}
