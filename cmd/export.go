package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/logging"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
	"github.com/sanisideup/jira-workspace-sync/pkg/reconcile"
	"github.com/sanisideup/jira-workspace-sync/pkg/workflow"
	"github.com/sanisideup/jira-workspace-sync/pkg/workspace"
)

var (
	exportFolder      string
	exportProject     string
	exportNewProject  string
	exportKey         string
	exportDescription string
	exportIssueType   string
	exportSet         []string
)

var exportCmd = &cobra.Command{
	Use:   "export <space>",
	Short: "Export a space or sprint folder to Jira",
	Long: `Export a workspace space, or one of its sprint folders, to Jira.

The export creates (in order) the project when --new-project is given, a
board filter, a scrum board, the sprints in chronological order and one issue
per task, then moves the issues into their sprints. Each issue is
transitioned to the Jira status its workspace status maps to.

Every workspace status must map to a Jira status before anything is created.
Saved mappings (see 'jws statuses map') are used when still valid; otherwise
mappings are proposed. A failed export leaves what it created in Jira and
lists it; fix the cause and run the export again.`,
	Example: `  # Into an existing project
  jws export "Mobile App" --project MA

  # One sprint folder into a new project
  jws export "Mobile App" --folder Q1 --new-project "Mobile Q1" --key MQ

  # Override a mapping for this run
  jws export "Mobile App" --project MA --set "Review=In Review"`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFolder, "folder", "", "export only this sprint folder (id or name)")
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "existing Jira project key")
	exportCmd.Flags().StringVar(&exportNewProject, "new-project", "", "name of a Jira project to create")
	exportCmd.Flags().StringVar(&exportKey, "key", "", "key of the new project (generated from the name when empty)")
	exportCmd.Flags().StringVar(&exportDescription, "description", "", "description of the new project")
	exportCmd.Flags().StringVar(&exportIssueType, "issue-type", "", "issue type for exported tasks (default from config)")
	exportCmd.Flags().StringArrayVar(&exportSet, "set", nil, "override a mapping as LOCAL=REMOTE (repeatable)")
	exportCmd.MarkFlagsMutuallyExclusive("project", "new-project")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return err
	}
	space, err := store.Space(ctx, args[0])
	if err != nil {
		return err
	}
	scope, err := exportScope(cmd, store, space)
	if err != nil {
		return err
	}

	issueType := exportIssueType
	if issueType == "" {
		issueType = cfg.ExportIssueType()
	}
	bars := newPhaseBars(map[string]string{
		"sprints": "Creating sprints...",
		"issues":  "Creating issues...",
		"moves":   "Filling sprints...",
	})
	e := workflow.NewExporter(tracker, workflow.ExportOptions{IssueType: issueType, Progress: bars.Report})

	if err := e.Connect(ctx); err != nil {
		return err
	}
	if exportNewProject != "" {
		key, err := e.NewProject(exportNewProject, exportKey, exportDescription)
		if err != nil {
			return err
		}
		logging.Info("new project planned", "key", key)
	} else {
		projectKey := exportProject
		if projectKey == "" {
			projectKey = cfg.DefaultProject
		}
		if projectKey == "" {
			return fmt.Errorf("--project or --new-project is required")
		}
		if err := e.SelectProject(ctx, projectKey); err != nil {
			return err
		}
	}

	if saved := savedMappings(space.Mappings, scope.Statuses, e.RemoteStatuses()); saved != nil {
		e.SetMappings(saved)
	} else {
		e.ProposeMappings(scope.Statuses)
	}
	mappings := e.Mappings()
	for _, set := range exportSet {
		local, target, ok := strings.Cut(set, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q: expected LOCAL=REMOTE", set)
		}
		if err := reconcile.Override(mappings, strings.TrimSpace(local), strings.TrimSpace(target), e.RemoteStatuses()); err != nil {
			return err
		}
	}
	e.SetMappings(mappings)

	result, runErr := e.Run(ctx, scope)
	bars.Finish()
	if runErr == nil {
		result.Warnings = append(result.Warnings, linkStatuses(cmd, store, space.ID, e.Mappings())...)
	}

	if jsonOutput {
		out := map[string]interface{}{
			"space":    space.Name,
			"scope":    scope.Name,
			"result":   result,
			"mappings": e.Mappings(),
		}
		if runErr != nil {
			out["error"] = runErr.Error()
		}
		if err := outputJSON(out); err != nil {
			return err
		}
		return runErr
	}

	printExportResult(result)
	if runErr != nil {
		fmt.Println("\nThe export stopped. Everything listed above was created in Jira and is left in place.")
		return runErr
	}
	fmt.Printf("\n✓ Exported %d tasks and %d sprints to %s\n", result.TasksExported(), result.SprintsCreated(), result.Project.Key)
	return nil
}

// exportScope builds the scope of a whole space, or of one of its folders
func exportScope(cmd *cobra.Command, store workspace.Store, space *workspace.Space) (*models.SprintScope, error) {
	if exportFolder == "" {
		return store.Scope(cmd.Context(), models.ScopeSpace, space.ID)
	}
	for _, f := range space.Folders {
		if f.ID == exportFolder || strings.EqualFold(f.Name, exportFolder) {
			return store.Scope(cmd.Context(), models.ScopeFolder, f.ID)
		}
	}
	return nil, fmt.Errorf("sprint folder '%s' in space '%s': %w", exportFolder, space.Name, workspace.ErrNotFound)
}

// linkStatuses records the exported Jira statuses on the local ones, so the
// next sync finds them as existing links, and saves the mappings
func linkStatuses(cmd *cobra.Command, store workspace.Store, spaceID string, mappings []models.StatusMapping) []workflow.Warning {
	ctx := cmd.Context()
	var warnings []workflow.Warning
	for _, m := range mappings {
		if err := store.LinkStatus(ctx, spaceID, m.LocalStatusID, m.RemoteStatusID, m.RemoteStatusName); err != nil {
			warnings = append(warnings, workflow.Warning{Step: "link-statuses", Message: fmt.Sprintf("%s: %v", m.LocalStatusName, err)})
		}
	}
	if err := store.SaveMappings(ctx, spaceID, mappings); err != nil {
		warnings = append(warnings, workflow.Warning{Step: "link-statuses", Message: fmt.Sprintf("mappings not saved: %v", err)})
	}
	return warnings
}

func printExportResult(result *workflow.ExportResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tID\tNAME")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	if result.Project != nil && result.ProjectCreated {
		fmt.Fprintf(w, "project\t%s\t%s (%s)\n", result.Project.ID, result.Project.Name, result.Project.Key)
	}
	if result.Filter != nil {
		fmt.Fprintf(w, "filter\t%s\t%s\n", result.Filter.ID, result.Filter.Name)
	}
	if result.Board != nil {
		fmt.Fprintf(w, "board\t%d\t%s\n", result.Board.ID, result.Board.Name)
	}
	for _, s := range result.Sprints {
		fmt.Fprintf(w, "sprint\t%d\t%s\n", s.Sprint.ID, s.Sprint.Name)
	}
	w.Flush()
	fmt.Printf("issues: %d created\n", result.TasksExported())
	printWarnings(result.Warnings)
}
