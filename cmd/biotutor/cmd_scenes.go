package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alex/biotutor/internal/scenario"
)

var scenesFlags struct {
	check bool
}

var scenesCmd = &cobra.Command{
	Use:   "scenes [file]",
	Short: "Validate and print a scene script (default: the built-in demo)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenes,
}

func init() {
	scenesCmd.Flags().BoolVar(&scenesFlags.check, "check", false, "only validate, print a one-line summary")
}

func runScenes(cmd *cobra.Command, args []string) error {
	title := "built-in demo"
	scenes := scenario.Demo()
	if len(args) == 1 {
		var err error
		if scenes, err = scenario.Load(args[0]); err != nil {
			return err
		}
		title = filepath.Base(args[0])
	}

	out := cmd.OutOrStdout()
	if scenesFlags.check {
		fmt.Fprintf(out, "%s: %d scenes ok\n", title, len(scenes))
		return nil
	}

	data, err := scenario.Marshal(title, scenes)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
