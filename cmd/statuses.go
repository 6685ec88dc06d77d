package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/reconcile"
)

var (
	statusesProject string
	statusesSet     []string
	statusesConfirm bool
	statusesReset   bool
)

var statusesCmd = &cobra.Command{
	Use:   "statuses",
	Short: "Inspect Jira statuses and map workspace statuses to them",
}

var statusesListCmd = &cobra.Command{
	Use:   "list <project-key>",
	Short: "List the statuses of a Jira project",
	Example: `  jws statuses list MA
  jws statuses list MA --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatusesList,
}

var statusesMapCmd = &cobra.Command{
	Use:   "map <space>",
	Short: "Propose, review and save status mappings for a space",
	Long: `Reconcile the statuses of a workspace space against a Jira project and
save the result on the space. 'jws export' uses saved mappings when they are
still valid for the target project.

Mappings are proposed by tier: an existing link from an earlier sync, then an
exact name, a substring, a keyword for the status type, the Jira status
category, and finally the first Jira status. Fallback mappings stay
unconfirmed until you confirm or override them.`,
	Example: `  # Propose mappings against project MA
  jws statuses map "Mobile App" --project MA

  # Override one mapping and confirm the rest
  jws statuses map "Mobile App" --project MA --set "Review=In Review" --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: runStatusesMap,
}

func init() {
	rootCmd.AddCommand(statusesCmd)
	statusesCmd.AddCommand(statusesListCmd)
	statusesCmd.AddCommand(statusesMapCmd)

	statusesMapCmd.Flags().StringVarP(&statusesProject, "project", "p", "", "Jira project key (default from config)")
	statusesMapCmd.Flags().StringArrayVar(&statusesSet, "set", nil, "override a mapping as LOCAL=REMOTE (name or id, repeatable)")
	statusesMapCmd.Flags().BoolVar(&statusesConfirm, "confirm", false, "confirm every mapping")
	statusesMapCmd.Flags().BoolVar(&statusesReset, "reset", false, "ignore saved mappings and propose new ones")
}

func runStatusesList(cmd *cobra.Command, args []string) error {
	statuses, err := tracker.ListProjectStatuses(cmd.Context(), strings.ToUpper(args[0]))
	if err != nil {
		return fmt.Errorf("failed to list statuses: %w", err)
	}

	if jsonOutput {
		return outputJSON(statuses)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY")
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.Name, s.StatusCategory.Key)
	}
	w.Flush()
	return nil
}

func runStatusesMap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectKey := strings.ToUpper(statusesProject)
	if projectKey == "" {
		projectKey = cfg.DefaultProject
	}
	if projectKey == "" {
		return fmt.Errorf("--project is required (or set default_project)")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	space, err := store.Space(ctx, args[0])
	if err != nil {
		return err
	}
	remote, err := tracker.ListProjectStatuses(ctx, projectKey)
	if err != nil {
		return fmt.Errorf("failed to list statuses of %s: %w", projectKey, err)
	}

	mappings := savedMappings(space.Mappings, space.Statuses, remote)
	if statusesReset || mappings == nil {
		mappings = reconcile.Reconcile(space.Statuses, remote)
	}

	for _, set := range statusesSet {
		local, target, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: expected LOCAL=REMOTE", set)
		}
		if err := reconcile.Override(mappings, strings.TrimSpace(local), strings.TrimSpace(target), remote); err != nil {
			return err
		}
	}
	if statusesConfirm {
		reconcile.Confirm(mappings)
	}

	warnings, validateErr := reconcile.Validate(mappings, space.Statuses, remote)
	if err := store.SaveMappings(ctx, space.ID, mappings); err != nil {
		return fmt.Errorf("failed to save mappings: %w", err)
	}

	if jsonOutput {
		result := map[string]interface{}{
			"space":    space.Name,
			"project":  projectKey,
			"mappings": mappings,
			"warnings": warnings,
		}
		if validateErr != nil {
			result["error"] = validateErr.Error()
		}
		if err := outputJSON(result); err != nil {
			return err
		}
		return validateErr
	}

	printMappings(mappings)
	for _, w := range warnings {
		fmt.Printf("  ! %s\n", w)
	}
	if validateErr != nil {
		return validateErr
	}
	fmt.Printf("\n✓ Saved %d mappings on space %q\n", len(mappings), space.Name)
	return nil
}

// savedMappings returns the stored mappings when they still cover every
// local status with a live remote status, otherwise nil
func savedMappings(saved []models.StatusMapping, local []models.LocalStatus, remote []models.Status) []models.StatusMapping {
	if len(saved) == 0 {
		return nil
	}
	if _, err := reconcile.Validate(saved, local, remote); err != nil {
		return nil
	}
	return append([]models.StatusMapping(nil), saved...)
}

func printMappings(mappings []models.StatusMapping) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCAL\tJIRA\tMATCHED BY\tCONFIRMED")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, m := range mappings {
		confirmed := ""
		if m.Confirmed {
			confirmed = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.LocalStatusName, m.RemoteStatusName, m.MatchedBy, confirmed)
	}
	w.Flush()
}
