package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/babelcloud/screenrec/internal/version"
)

func NewVersionCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Info()
			switch output {
			case "json":
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			case "text", "":
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Version:     %s\n", info.Version)
				fmt.Fprintf(out, "Go version:  %s\n", info.GoVersion)
				fmt.Fprintf(out, "Git commit:  %s\n", info.Commit)
				fmt.Fprintf(out, "Built:       %s\n", info.BuildTime)
				fmt.Fprintf(out, "OS/Arch:     %s\n", info.Platform)
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")
	return cmd
}
