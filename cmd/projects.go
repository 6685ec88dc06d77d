package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the Jira projects you can see",
	Long: `List every Jira project visible to the configured user. These are the
projects 'jws import' can read and whose keys 'jws export' must avoid.

Examples:
  jws projects
  jws projects --json`,
	RunE: runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	projects, err := tracker.ListProjects(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if jsonOutput {
		return outputJSON(projects)
	}

	if len(projects) == 0 {
		fmt.Println("No projects found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tTYPE\tLEAD")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, p := range projects {
		lead := ""
		if p.Lead != nil {
			lead = p.Lead.DisplayName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Key, p.Name, p.ProjectTypeKey, lead)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d projects\n", len(projects))
	return nil
}
