package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/scout-reports/internal/upload"
)

type submitOptions struct {
	lat      float64
	long     float64
	maxBytes int64
	timeout  time.Duration
}

func newSubmitCmd(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <photo>",
		Short: "Загрузить фотографию и получить классификацию",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, root, opts, args[0])
		},
	}
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "широта места съёмки")
	cmd.Flags().Float64Var(&opts.long, "long", 0, "долгота места съёмки")
	cmd.Flags().Int64Var(&opts.maxBytes, "max-bytes", upload.DefaultMaxBytes, "предельный размер фотографии")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "общий таймаут отправки")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("long")
	return cmd
}

func runSubmit(cmd *cobra.Command, root *rootOptions, opts *submitOptions, photo string) error {
	data, err := os.ReadFile(photo)
	if err != nil {
		return fmt.Errorf("scout: чтение фотографии: %w", err)
	}

	// Без токена StaticIdentity вернёт Unauthorized, и координатор сообщит об этом сам.
	userID, err := subjectFromToken(root.token)
	if err != nil && root.token != "" {
		return err
	}

	coordinator := upload.NewCoordinator(
		upload.StaticIdentity(userID),
		&upload.HTTPUploader{BaseURL: root.apiURL, Token: root.token},
		upload.StaticLocator{Position: upload.Position{Lat: opts.lat, Long: opts.long}},
		&upload.HTTPIngestionClient{BaseURL: root.apiURL, Token: root.token},
		&upload.WriterNotifier{W: cmd.OutOrStdout()},
		opts.maxBytes,
	)

	ctx, cancel := contextWithTimeout(cmd, opts.timeout)
	defer cancel()

	result, err := coordinator.Submit(ctx, upload.File{
		Name:         filepath.Base(photo),
		DeclaredType: mime.TypeByExtension(filepath.Ext(photo)),
		Data:         data,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "  invasive:   %t\n", result.IsInvasive)
	fmt.Fprintf(out, "  hazard:     %s\n", result.HazardRating)
	fmt.Fprintf(out, "  confidence: %.0f%%\n", result.Confidence*100)
	if result.Description != "" {
		fmt.Fprintf(out, "  %s\n", result.Description)
	}
	return nil
}
