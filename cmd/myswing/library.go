package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"myswing/internal/app"
	"myswing/internal/swing"

	"github.com/spf13/cobra"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Browse past analyses",
}

var analysesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, "ListAnalyses", func(ctx context.Context, a *app.App) error {
			list, err := a.ListAnalyses(ctx, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No analyses yet.")
				return nil
			}
			printAnalysisTable(os.Stdout, list)
			return nil
		})
	},
}

var analysesShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "GetAnalysis", func(ctx context.Context, a *app.App) error {
			an, err := a.GetAnalysis(ctx, args[0])
			if err != nil {
				return err
			}
			printAnalysis(os.Stdout, an)
			return nil
		})
	},
}

var analysesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an analysis and its video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			fmt.Fprintf(os.Stderr, "Delete analysis %s and its video? [y/N] ", args[0])
			answer, err := readLine()
			if err != nil || !strings.EqualFold(strings.TrimSpace(answer), "y") {
				fmt.Println("Aborted.")
				return nil
			}
		}
		return withApp(cmd, "DeleteAnalysis", func(ctx context.Context, a *app.App) error {
			if err := a.DeleteAnalysis(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted analysis %s\n", args[0])
			return nil
		})
	},
}

var analysesURLCmd = &cobra.Command{
	Use:   "url ID",
	Short: "Print a temporary playback URL for the video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "PlaybackURL", func(ctx context.Context, a *app.App) error {
			u, err := a.PlaybackURL(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(u)
			return nil
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "View and edit your golf profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "GetProfile", func(ctx context.Context, a *app.App) error {
			p, err := a.Profile(ctx)
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Println("No profile yet. Create one with: myswing profile set --name NAME")
				return nil
			}
			printProfile(os.Stdout, p)
			return nil
		})
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		update := &swing.ProfileUpdate{}
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			update.DisplayName = &name
		}
		if cmd.Flags().Changed("handicap") {
			h, _ := cmd.Flags().GetFloat64("handicap")
			update.Handicap = &h
		}
		if cmd.Flags().Changed("hand") {
			hand, _ := cmd.Flags().GetString("hand")
			hand = strings.ToLower(hand)
			update.DominantHand = &hand
		}
		if update.DisplayName == nil && update.Handicap == nil && update.DominantHand == nil {
			return fmt.Errorf("nothing to update: pass --name, --handicap or --hand")
		}

		return withApp(cmd, "UpdateProfile", func(ctx context.Context, a *app.App) error {
			p, err := a.UpdateProfile(ctx, update)
			if err != nil {
				return err
			}
			printProfile(os.Stdout, p)
			return nil
		})
	},
}

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Show stats, recent analyses, conditions and today's tip",
	RunE: func(cmd *cobra.Command, args []string) error {
		var loc *swing.Location
		if cmd.Flags().Changed("lat") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			loc = &swing.Location{Lat: lat, Lon: lon}
		}
		return withApp(cmd, "Dashboard", func(ctx context.Context, a *app.App) error {
			d, err := a.Dashboard(ctx, loc)
			if err != nil {
				return err
			}
			printDashboard(os.Stdout, d)
			return nil
		})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "ClearCache", func(ctx context.Context, a *app.App) error {
			if err := a.ClearCache(); err != nil {
				return err
			}
			fmt.Println("Cache cleared.")
			return nil
		})
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "View the local log of analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withApp(cmd, "ListRuns", func(ctx context.Context, a *app.App) error {
			runs, err := a.Runs(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSTATUS\tSTAGE\tJOB\tANALYSIS\tERROR\tVIDEO")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Status,
					r.Stage,
					dash(r.JobID),
					dash(r.AnalysisID),
					dash(string(r.ErrorKind)),
					r.VideoPath,
				)
			}
			return tw.Flush()
		})
	},
}
