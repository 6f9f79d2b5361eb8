package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	domainscan "veriscan/internal/domain/scan"
)

var (
	listOwner   string
	getOwner    string
	searchOwner string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the owner's scans, newest first",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		records, err := deps.Svc.List(cmd.Context(), listOwner)
		if err != nil {
			return err
		}
		printRecordLines(cmd, records)
		return nil
	}),
}

var getCmd = &cobra.Command{
	Use:   "get <record-id>",
	Short: "Show one scan record",
	Args:  cobra.ExactArgs(1),
	RunE: withAppArgs(func(cmd *cobra.Command, deps appDeps, args []string) error {
		record, err := deps.Svc.Get(cmd.Context(), getOwner, args[0])
		if err != nil {
			return err
		}
		printRecord(cmd, record)
		return nil
	}),
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search the owner's scans by extracted text",
	Args:  cobra.ExactArgs(1),
	RunE: withAppArgs(func(cmd *cobra.Command, deps appDeps, args []string) error {
		records, err := deps.Svc.Search(cmd.Context(), searchOwner, args[0])
		if err != nil {
			return err
		}
		printRecordLines(cmd, records)
		return nil
	}),
}

func init() {
	listCmd.Flags().StringVar(&listOwner, "owner", "", "Owner identity (required)")
	_ = listCmd.MarkFlagRequired("owner")
	getCmd.Flags().StringVar(&getOwner, "owner", "", "Owner identity (required)")
	_ = getCmd.MarkFlagRequired("owner")
	searchCmd.Flags().StringVar(&searchOwner, "owner", "", "Owner identity (required)")
	_ = searchCmd.MarkFlagRequired("owner")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
}

func printRecordLines(cmd *cobra.Command, records []domainscan.ScanRecord) {
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "no scans")
		return
	}
	for _, record := range records {
		credibility := "-"
		if record.Credibility != nil {
			credibility = fmt.Sprintf("%d", *record.Credibility)
		}
		fmt.Fprintf(out, "%s  %-8s  %3s  %s  %s\n",
			record.ID, record.Status, credibility, record.Filename, record.CreatedAt)
	}
}
