package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "reelcut",
		Short:        "Edit and export video projects without touching the sources",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	pf := root.PersistentFlags()
	pf.String("ffmpeg", "", "ffmpeg binary (overrides config)")
	pf.String("ffprobe", "", "ffprobe binary (overrides config)")
	pf.String("log-level", "", "trace|debug|info|warn|error (overrides config)")

	root.AddCommand(
		newCmd(),
		probeCmd(),
		importCmd(),
		waveformCmd(),
		exportCmd(),
		inspectCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
