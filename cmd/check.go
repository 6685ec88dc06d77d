package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the Jira connection",
	Long: `Check that the configured credentials authenticate against Jira.

Examples:
  jws check
  jws check --json`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	user, err := tracker.Myself(cmd.Context())
	if jsonOutput {
		result := map[string]interface{}{
			"connected": err == nil,
			"domain":    cfg.Domain,
		}
		if err != nil {
			result["error"] = err.Error()
		} else {
			result["user"] = user
		}
		if encErr := outputJSON(result); encErr != nil {
			return encErr
		}
		return err
	}

	if err != nil {
		return fmt.Errorf("connection to %s failed: %w", cfg.Domain, err)
	}
	fmt.Printf("✓ Connected to %s as %s (%s)\n", cfg.Domain, user.DisplayName, user.EmailAddress)
	return nil
}
