package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/scout-reports/internal/feed"
	"github.com/ignatzorin/scout-reports/internal/models"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var view string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Показывать новые отчёты по мере поступления",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := parseView(view)
			if err != nil {
				return err
			}
			return runWatch(cmd, root, kind)
		},
	}
	cmd.Flags().StringVar(&view, "view", "feed", "вид: feed, map или list")
	return cmd
}

func parseView(v string) (feed.ViewKind, error) {
	switch v {
	case "feed":
		return feed.ViewFeed, nil
	case "map":
		return feed.ViewMap, nil
	case "list":
		return feed.ViewList, nil
	default:
		return 0, fmt.Errorf("scout: неизвестный вид %q", v)
	}
}

func runWatch(cmd *cobra.Command, root *rootOptions, kind feed.ViewKind) error {
	userID, err := subjectFromToken(root.token)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	profile, err := fetchProfile(ctx, nil, root.apiURL, root.token)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	syncer := feed.NewSynchronizer(feed.Options{
		Kind:       kind,
		Role:       profile.Role,
		ViewerID:   userID,
		Fetcher:    &feed.HTTPFetcher{BaseURL: root.apiURL, Token: root.token},
		Subscriber: &feed.WSSubscriber{BaseURL: root.apiURL, Token: root.token},
		OnInsert: func(r models.Report) {
			printReport(out, kind, "new", r)
		},
	})

	startCtx, cancel := contextWithTimeout(cmd, 30*time.Second)
	defer cancel()
	if err := syncer.Start(startCtx); err != nil {
		return err
	}
	defer syncer.Close()

	fmt.Fprintf(out, "watching as %s (%s)\n", profile.Username, profile.Role)
	for _, r := range syncer.Reports() {
		printReport(out, kind, "   ", r)
	}

	<-ctx.Done()
	return nil
}

func printReport(w io.Writer, kind feed.ViewKind, tag string, r models.Report) {
	if kind == feed.ViewMap {
		m, ok := models.MarkerFor(&r)
		if !ok {
			return
		}
		fmt.Fprintf(w, "%s [%s] %.5f,%.5f %s\n", tag, m.Style, m.Lat, m.Lon, m.SpeciesName)
		return
	}
	fmt.Fprintf(w, "%s %s %-28s %-8s %s\n",
		tag, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.SpeciesName, r.HazardRating, r.Status)
}

func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), d)
}
