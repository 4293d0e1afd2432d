package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tm "github.com/buger/goterm"
	"github.com/spf13/cobra"

	"github.com/avroom/reelcut/internal/config"
	"github.com/avroom/reelcut/internal/domain/audio"
	"github.com/avroom/reelcut/internal/export"
	"github.com/avroom/reelcut/internal/logging"
	"github.com/avroom/reelcut/internal/pipeline"
)

// buildApp loads config, applies flag overrides and assembles the
// pipeline behind the command.
func buildApp(cmd *cobra.Command) (*pipeline.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("ffmpeg"); v != "" {
		cfg.FFmpegPath = v
	}
	if v, _ := cmd.Flags().GetString("ffprobe"); v != "" {
		cfg.FFprobePath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	return pipeline.New(pipeline.Config{
		FFmpegPath:      cfg.FFmpegPath,
		FFprobePath:     cfg.FFprobePath,
		CacheCapacity:   cfg.CacheCapacity,
		AudioSampleRate: cfg.AudioSampleRate,
		AutosaveEnabled: cfg.AutosaveEnabled,
		Log:             logging.New(os.Stderr, cfg.LogLevel),
	})
}

func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <project.json>",
		Short: "Scaffold a default project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			p, err := app.NewProject(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (project %s)\n", args[0], p.Metadata["project_id"])
			return nil
		},
	}
}

func probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <media>",
		Short: "Show duration and stream layout of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			info, err := app.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "duration: %.3fs\n", info.Duration)
			for _, v := range info.Video {
				fmt.Fprintf(out, "video #%d: %dx%d @ %.3f fps\n", v.Index, v.Width, v.Height, v.FPS)
			}
			for _, a := range info.Audio {
				fmt.Fprintf(out, "audio #%d: %d Hz, %d ch\n", a.Index, a.Rate, a.Channels)
			}
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <media>...",
		Short: "Register media files as project assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, _ := cmd.Flags().GetString("project")
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			res, err := app.Import(cmd.Context(), projectPath, args...)
			out := cmd.OutOrStdout()
			for _, a := range res.Assets {
				fmt.Fprintf(out, "%s\t%s\t%s\n", a.ID, a.Kind, a.Path)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return err
		},
	}
	cmd.Flags().StringP("project", "p", "", "Project file to import into")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func waveformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "waveform <media>",
		Short: "Reduce a file's audio to an RMS profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			wf, err := app.Waveform(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			if outPath != "" {
				if err := audio.SaveWaveform(outPath, wf); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d windows of %d samples\n",
					outPath, len(wf.RMS), wf.WindowSize)
				return nil
			}
			b, err := json.MarshalIndent(wf, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "Write the profile as JSON to this file")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render the project to a finished video",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().StringP("project", "p", "", "Project file to render")
	cmd.Flags().StringP("out", "o", "", "Output video path")
	cmd.Flags().String("preset", "standard_1080p",
		"Encode preset: "+strings.Join(export.PresetNames(), ", "))
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	projectPath, _ := cmd.Flags().GetString("project")
	outPath, _ := cmd.Flags().GetString("out")
	preset, _ := cmd.Flags().GetString("preset")

	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	// Ctrl-C cancels the render; the exporter drops partial output.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	live := func(st export.State, v float64) {
		tm.Printf("\r%-10s %5.1f%%", st, v*100)
		tm.Flush()
	}
	err = app.ExportProject(ctx, projectPath, export.Request{OutputPath: outPath, Preset: preset}, live)
	tm.Printf("\n")
	tm.Flush()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", outPath)
	return nil
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a project file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, _ := cmd.Flags().GetString("project")
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()
			sum, err := app.Inspect(projectPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "project:  %s (%s, v%s)\n", sum.Path, sum.ProjectID, sum.Version)
			fmt.Fprintf(out, "settings: %dx%d @ %g fps\n", sum.Width, sum.Height, sum.FPS)
			fmt.Fprintf(out, "content:  %d assets, %d tracks, %d clips\n", sum.Assets, sum.Tracks, sum.Clips)
			fmt.Fprintf(out, "duration: %.3fs (%d ticks)\n", sum.Duration, sum.DurationTicks)
			fmt.Fprintf(out, "playhead: tick %d\n", sum.PlayheadTicks)
			return nil
		},
	}
	cmd.Flags().StringP("project", "p", "", "Project file to inspect")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
