package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietddude/retryguard/internal/core/domain"
	"github.com/vietddude/retryguard/internal/failure"
	redisclient "github.com/vietddude/retryguard/internal/infra/redis"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect suppressed failures",
}

var snapshotGetCmd = &cobra.Command{
	Use:   "get <retry-key>",
	Short: "Print the suppressed failure stored for a retry key",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotGet,
}

func init() {
	snapshotCmd.AddCommand(snapshotGetCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshotGet(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snap, err := failure.LookupSnapshot(cmd.Context(), client, args[0])
	if errors.Is(err, domain.ErrNoSnapshot) {
		return fmt.Errorf("no suppressed failure at %s", failure.FailureKey(args[0]))
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
