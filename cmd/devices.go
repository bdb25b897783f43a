package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/babelcloud/screenrec/config"
	"github.com/babelcloud/screenrec/internal/capture"
	"github.com/babelcloud/screenrec/internal/util"
)

func NewDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Show the capture backends and devices that will be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			registry := capture.NewDefaultRegistry(config.GetFFmpegPath(), nil)

			audioSource := config.GetAudioSource()
			if !config.GetAudioEnabled() {
				audioSource = color.New(color.Faint).Sprint("disabled")
			}
			util.RenderTable(out, []util.TableColumn{
				{Header: "ROLE", Key: "role"},
				{Header: "BACKEND", Key: "backend"},
				{Header: "FORMAT", Key: "format"},
				{Header: "SOURCE", Key: "source"},
			}, []map[string]any{
				{
					"role":    color.New(color.FgCyan).Sprint("video"),
					"backend": config.GetVideoBackend(),
					"format":  config.GetVideoFormat(),
					"source":  config.GetVideoSource(),
				},
				{
					"role":    color.New(color.FgCyan).Sprint("audio"),
					"backend": config.GetAudioBackend(),
					"format":  config.GetAudioFormat(),
					"source":  audioSource,
				},
			})

			fmt.Fprintln(out)
			fmt.Fprintf(out, "Backends: %s\n", strings.Join(registry.Names(), ", "))
			if w, h, err := capture.DisplayResolution(cmd.Context(), runtime.GOOS); err == nil {
				fmt.Fprintf(out, "Screen:   %dx%d\n", w, h)
			} else {
				color.New(color.Faint).Fprintf(out, "Screen:   %v\n", err)
			}
			return nil
		},
	}
}
