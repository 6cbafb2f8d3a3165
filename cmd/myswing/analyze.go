package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"myswing/internal/app"
	"myswing/internal/swing"

	"github.com/spf13/cobra"
)

// sourceFlag maps --gallery/--recorded to a source override.
func sourceFlag(cmd *cobra.Command) swing.VideoSource {
	if gallery, _ := cmd.Flags().GetBool("gallery"); gallery {
		return swing.SourceGallerySelected
	}
	if recorded, _ := cmd.Flags().GetBool("recorded"); recorded {
		return swing.SourceCameraRecorded
	}
	return ""
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze VIDEO",
	Short: "Upload a swing video and get coaching feedback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		req := swing.Request{VideoPath: path, Source: sourceFlag(cmd)}
		req.Context.Club, _ = cmd.Flags().GetString("club")
		req.Context.Angle, _ = cmd.Flags().GetString("angle")
		req.Context.ShotType, _ = cmd.Flags().GetString("shot")
		req.Context.UserNotes, _ = cmd.Flags().GetString("notes")
		req.TargetMB, _ = cmd.Flags().GetFloat64("target-mb")
		noWait, _ := cmd.Flags().GetBool("no-wait")

		return withApp(cmd, "Analyze", func(ctx context.Context, a *app.App) error {
			result := a.Analyze(ctx, req)
			printWorkflowResult(os.Stdout, result)
			if !result.Success {
				return result.Err
			}

			analysisID := result.AnalysisID
			if !result.Sync {
				if noWait {
					fmt.Printf("Job %s queued. Follow it with: myswing job watch %s\n", result.JobID, result.JobID)
					return nil
				}
				fmt.Printf("Job %s queued, waiting for the analysis...\n", result.JobID)
				an, err := a.AwaitJob(ctx, result.JobID)
				if err != nil {
					return err
				}
				printAnalysis(os.Stdout, an)
				return nil
			}

			an, err := a.GetAnalysis(ctx, analysisID)
			if err != nil {
				return err
			}
			printAnalysis(os.Stdout, an)
			return nil
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate VIDEO",
	Short: "Check whether a video can be analyzed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		return withApp(cmd, "Validate", func(ctx context.Context, a *app.App) error {
			res := a.Validate(ctx, path, sourceFlag(cmd))
			printValidation(os.Stdout, res)
			if issue := res.FirstError(); issue != nil {
				kind := issue.Kind
				if kind == "" {
					kind = swing.KindValidationFailed
				}
				return swing.NewError(kind, "%s", issue.Message)
			}
			return nil
		})
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [DIR]",
	Short: "Validate every video in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		dir, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		return withApp(cmd, "Scan", func(ctx context.Context, a *app.App) error {
			entries, err := a.Scan(ctx, dir, recursive)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No videos found.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tSIZE\tSOURCE\tPATH")
			for _, e := range entries {
				size := "-"
				if e.Validation.Metadata != nil {
					size = fmt.Sprintf("%.1fMB", e.Validation.Metadata.SizeMB)
				}
				rel, err := filepath.Rel(dir, e.Path)
				if err != nil {
					rel = e.Path
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", validationStatus(e.Validation), size, e.Source, rel)
			}
			return tw.Flush()
		})
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate SIZE_MB",
	Short: "Estimate the upload size of a video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeMB, err := strconv.ParseFloat(args[0], 64)
		if err != nil || sizeMB <= 0 {
			return fmt.Errorf("invalid size %q: want megabytes greater than zero", args[0])
		}
		target, _ := cmd.Flags().GetFloat64("target-mb")

		level := swing.PlanCompression(swing.VideoMetadata{SizeMB: sizeMB}, target)
		if cmd.Flags().Changed("quality") {
			q, _ := cmd.Flags().GetFloat64("quality")
			if q <= 0 || q > 1 {
				return fmt.Errorf("quality must be in (0, 1], got %v", q)
			}
			level.Quality = q
			level.Aggressive = false
		}
		if cmd.Flags().Changed("resolution") {
			raw, _ := cmd.Flags().GetString("resolution")
			res, ok := swing.ParseResolution(raw)
			if !ok {
				return fmt.Errorf("unknown resolution %q: want original, 720p or 480p", raw)
			}
			level.Resolution = res
		}

		fmt.Printf("Original:   %.1fMB\n", sizeMB)
		fmt.Printf("Target:     %.1fMB\n", swing.EffectiveTargetMB(target))
		fmt.Printf("Plan:       %s\n", formatLevel(level))
		if level.IsNoop() {
			fmt.Printf("Estimated:  %.1fMB (no compression)\n", sizeMB)
			return nil
		}
		fmt.Printf("Estimated:  %.1fMB\n", swing.EstimateCompressedSize(sizeMB, level))
		return nil
	},
}

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Follow analysis jobs",
}

var jobWatchCmd = &cobra.Command{
	Use:   "watch JOB_ID",
	Short: "Wait for a job to finish and show its analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "WatchJob", func(ctx context.Context, a *app.App) error {
			fmt.Printf("Waiting for job %s...\n", args[0])
			an, err := a.AwaitJob(ctx, args[0])
			if err != nil {
				return err
			}
			printAnalysis(os.Stdout, an)
			return nil
		})
	},
}
