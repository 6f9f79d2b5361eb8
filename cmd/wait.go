package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"veriscan/internal/ports"
	scanusecase "veriscan/internal/usecase/scan"
)

var (
	waitOwner   string
	waitTimeout time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait <filename-or-id>",
	Short: "Wait for a pending scan to finish",
	Long: `Wait subscribes to the change feed and blocks until the scan matching
the given filename or record id reaches the done status, or until the
timeout elapses. A timeout is not an error: the scan keeps processing
in the background and shows up in list once finished.`,
	Args: cobra.ExactArgs(1),
	RunE: withAppArgs(func(cmd *cobra.Command, deps appDeps, args []string) error {
		timeout := waitTimeout
		if timeout <= 0 {
			timeout = deps.App.Config.Delivery.WaitTimeout
		}

		waiter := scanusecase.NewWaiter(args[0], timeout, nil)

		// The feed is system-wide; drop other owners' events before they
		// reach the waiter.
		unsubscribe, err := deps.Bus.Subscribe(cmd.Context(), func(event ports.ChangeEvent) {
			if event.Record.OwnerID != waitOwner {
				return
			}
			waiter.OnEvent(event)
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		record, err := waiter.Wait(cmd.Context())
		if errors.Is(err, scanusecase.ErrWaitTimeout) {
			fmt.Fprintf(cmd.OutOrStdout(), "still processing after %s, check back with list\n", timeout)
			return nil
		}
		if err != nil {
			return err
		}

		printRecord(cmd, record)
		return nil
	}),
}

func init() {
	waitCmd.Flags().StringVar(&waitOwner, "owner", "", "Owner identity (required)")
	waitCmd.Flags().DurationVar(&waitTimeout, "timeout", 0, "How long to wait before giving up (default from config)")
	_ = waitCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(waitCmd)
}
