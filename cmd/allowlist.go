package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/allowlist"
)

// allowlistCmd is the parent command for allowlist operations
var allowlistCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Show command allowlist restrictions",
	Long: `Show the command allowlist restrictions of this environment.

Restricting commands keeps unattended runs (cron, CI) from writing to Jira or
to the workspace:
  JWS_READONLY=1              only commands that read (check, projects, statuses list, ...)
  JWS_COMMAND_ALLOWLIST=...   only the listed commands (comma-separated)`,
}

var allowlistStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current allowlist status",
	RunE:  runAllowlistStatus,
}

var allowlistCommandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List all commands by category (read/write)",
	RunE:  runAllowlistCommands,
}

var allowlistCheckCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Check if a command is allowed",
	Long: `Check if a command is allowed under current restrictions. Exits non-zero
when it is blocked.

Examples:
  jws allowlist check export
  jws allowlist check "statuses map"`,
	Args: cobra.ExactArgs(1),
	RunE: runAllowlistCheck,
}

func init() {
	allowlistCmd.AddCommand(allowlistStatusCmd)
	allowlistCmd.AddCommand(allowlistCommandsCmd)
	allowlistCmd.AddCommand(allowlistCheckCmd)
	rootCmd.AddCommand(allowlistCmd)
}

func runAllowlistStatus(cmd *cobra.Command, args []string) error {
	checker := allowlist.NewChecker()
	allowed := checker.GetAllowedCommands()
	sort.Strings(allowed)

	if jsonOutput {
		return outputJSON(map[string]interface{}{
			"enabled":         checker.IsEnabled(),
			"readOnly":        checker.IsReadOnly(),
			"allowedCommands": allowed,
			"envVars": map[string]string{
				allowlist.EnvReadOnly:         os.Getenv(allowlist.EnvReadOnly),
				allowlist.EnvCommandAllowlist: os.Getenv(allowlist.EnvCommandAllowlist),
			},
		})
	}

	switch {
	case !checker.IsEnabled():
		fmt.Println("Status: DISABLED (all commands allowed)")
		fmt.Printf("Set %s=1 for read-only mode or %s=... for an explicit list.\n", allowlist.EnvReadOnly, allowlist.EnvCommandAllowlist)
		return nil
	case checker.IsReadOnly():
		fmt.Printf("Status: ENABLED (read-only mode, %s)\n", allowlist.EnvReadOnly)
	default:
		fmt.Printf("Status: ENABLED (%s=%s)\n", allowlist.EnvCommandAllowlist, os.Getenv(allowlist.EnvCommandAllowlist))
	}

	fmt.Println("\nAllowed commands:")
	for _, c := range allowed {
		fmt.Printf("  ✓ %s\n", c)
	}
	fmt.Println("\nNote: 'help' and 'version' are always allowed.")
	return nil
}

func runAllowlistCommands(cmd *cobra.Command, args []string) error {
	if jsonOutput {
		return outputJSON(map[string]interface{}{
			"readCommands":  allowlist.ReadOnlyCommands,
			"writeCommands": allowlist.WriteCommands,
		})
	}

	printCommands := func(title, mark string, commands []string) {
		sorted := append([]string(nil), commands...)
		sort.Strings(sorted)
		fmt.Printf("%s (%d):\n", title, len(sorted))
		for _, c := range sorted {
			fmt.Printf("  %s %s\n", mark, c)
		}
	}
	printCommands("READ COMMANDS - allowed in read-only mode", "✓", allowlist.ReadOnlyCommands)
	fmt.Println()
	printCommands("WRITE COMMANDS - blocked in read-only mode", "✗", allowlist.WriteCommands)
	return nil
}

func runAllowlistCheck(cmd *cobra.Command, args []string) error {
	command := strings.TrimSpace(args[0])
	checkErr := allowlist.NewChecker().Check(command)

	if jsonOutput {
		result := map[string]interface{}{
			"command": command,
			"allowed": checkErr == nil,
			"write":   allowlist.IsWrite(command),
		}
		if checkErr != nil {
			result["error"] = checkErr.Error()
		}
		if err := outputJSON(result); err != nil {
			return err
		}
		return checkErr
	}

	kind := "read"
	if allowlist.IsWrite(command) {
		kind = "write"
	}
	if checkErr != nil {
		fmt.Printf("✗ Command '%s' (%s) is BLOCKED\n", command, kind)
		return checkErr
	}
	fmt.Printf("✓ Command '%s' (%s) is ALLOWED\n", command, kind)
	return nil
}
