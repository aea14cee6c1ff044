package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/diff0/diff0/internal/wire"
)

var (
	reviewsUser  string
	reviewsLimit int
	outputJSON   bool
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Lists recent reviews for a user",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		app, cleanup, err := wire.InitializeApp(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		reviews, err := app.Store.ListRecentReviews(ctx, reviewsUser, reviewsLimit)
		if err != nil {
			return fmt.Errorf("failed to retrieve reviews: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(reviews)
		}

		if len(reviews) == 0 {
			slog.Info("No reviews found for this user.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tPR\tSTATUS\tCREDITS\tCREATED")
		for _, review := range reviews {
			fmt.Fprintf(w, "%d\t#%d\t%s\t%d\t%s\n",
				review.ID,
				review.PRNumber,
				review.Status,
				review.CreditsUsed,
				review.CreatedAt.Format(time.RFC822),
			)
		}
		return w.Flush()
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	reviewsCmd.Flags().StringVarP(&reviewsUser, "user", "u", "", "User ID to list reviews for")
	reviewsCmd.Flags().IntVarP(&reviewsLimit, "limit", "n", 20, "Maximum number of reviews to list")
	reviewsCmd.Flags().BoolVar(&outputJSON, "json", false, "Output reviews as JSON")
	_ = reviewsCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(reviewsCmd)
}
