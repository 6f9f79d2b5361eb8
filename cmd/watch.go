package cmd

import (
	"github.com/spf13/cobra"

	domainscan "veriscan/internal/domain/scan"
	scanusecase "veriscan/internal/usecase/scan"
)

var (
	watchOwner  string
	watchSource string
)

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and scan images as they arrive",
	Long: `Watch runs the pipeline for every image dropped into the directory
tree. A ` + scanusecase.SidecarName + ` sidecar file in the directory root can
override the owner, source and extension filter. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: withAppArgs(func(cmd *cobra.Command, deps appDeps, args []string) error {
		defaults := scanusecase.IngestConfig{
			Owner:  watchOwner,
			Source: watchSource,
		}
		return deps.Svc.IngestDirectory(cmd.Context(), args[0], defaults)
	}),
}

func init() {
	watchCmd.Flags().StringVar(&watchOwner, "owner", "", "Owner identity for ingested scans")
	watchCmd.Flags().StringVar(&watchSource, "source", string(domainscan.SourceGallery), "Source label for ingested scans")
	rootCmd.AddCommand(watchCmd)
}
