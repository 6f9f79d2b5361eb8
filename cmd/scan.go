package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	domainscan "veriscan/internal/domain/scan"
	"veriscan/internal/errs"
	scanusecase "veriscan/internal/usecase/scan"
)

var (
	scanOwner  string
	scanSource string
)

var scanCmd = &cobra.Command{
	Use:   "scan <image-file>",
	Short: "Run the full pipeline for one image",
	Args:  cobra.ExactArgs(1),
	RunE: withAppArgs(func(cmd *cobra.Command, deps appDeps, args []string) error {
		image, err := os.ReadFile(args[0])
		if err != nil {
			return errs.Wrapf(err, "read image %q", args[0])
		}

		result, err := deps.Svc.Submit(cmd.Context(), scanusecase.SubmitInput{
			OwnerID: scanOwner,
			Image:   image,
			Source:  domainscan.Source(scanSource),
			OnStage: func(stage domainscan.Stage) {
				fmt.Fprintf(cmd.OutOrStdout(), "... %s\n", stage)
			},
		})
		if err != nil {
			var stageErr *domainscan.StageError
			if errors.As(err, &stageErr) && stageErr.RecordID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "scan %s saved but still processing (%s failed)\n", stageErr.RecordID, stageErr.Stage)
			}
			return err
		}

		printRecord(cmd, result.Record)
		return nil
	}),
}

func init() {
	scanCmd.Flags().StringVar(&scanOwner, "owner", "", "Owner identity for the scan (required)")
	scanCmd.Flags().StringVar(&scanSource, "source", string(domainscan.SourceCamera), "Image source: camera or gallery")
	_ = scanCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(scanCmd)
}

func printRecord(cmd *cobra.Command, record domainscan.ScanRecord) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:          %s\n", record.ID)
	fmt.Fprintf(out, "filename:    %s\n", record.Filename)
	fmt.Fprintf(out, "status:      %s\n", record.Status)
	if record.Credibility != nil {
		fmt.Fprintf(out, "credibility: %d/100\n", *record.Credibility)
	}
	if record.Explanation != nil {
		fmt.Fprintf(out, "explanation: %s\n", *record.Explanation)
	}
	if record.ExtractedText != "" {
		fmt.Fprintf(out, "text:        %s\n", record.ExtractedText)
	}
	fmt.Fprintf(out, "created:     %s\n", record.CreatedAt)
}
