package main

import (
	"context"
	"fmt"
	"io"

	"github.com/Brownie44l1/potato-api/internal/client"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type fileClassifier interface {
	PredictFile(ctx context.Context, path string) (*client.Prediction, error)
}

var predictCmd = &cobra.Command{
	Use:   "predict FILE...",
	Short: "Upload images and print the predicted class",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return predictFiles(cmd.Context(), client.New(serverURL), args, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// predictFiles classifies every path and keeps going past failures. A
// progress bar is drawn on errOut when there is more than one file.
func predictFiles(ctx context.Context, c fileClassifier, paths []string, out, errOut io.Writer) error {
	var bar *progressbar.ProgressBar
	if len(paths) > 1 {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetWriter(errOut),
			progressbar.OptionSetDescription("classifying"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	failed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		pred, err := c.PredictFile(ctx, path)
		if err != nil {
			failed++
			fmt.Fprintf(errOut, "%s: %v\n", path, err)
		} else {
			fmt.Fprintf(out, "%s\t%s\t%.4f\n", path, pred.Class, pred.Confidence)
		}

		if bar != nil {
			bar.Add(1)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
