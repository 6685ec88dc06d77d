package cmd

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/config"
	"github.com/sanisideup/jira-workspace-sync/pkg/jira"
	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

var (
	fieldsProject  string
	fieldsMapForce bool
)

// fieldsCmd represents the fields command
var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Discover Jira fields and manage field aliases",
	Long: `Discover Jira fields, including the story points and sprint custom fields
that sync depends on. Field ids differ between Jira sites; pin one with
'jws fields map story_points <field-id>' when discovery picks the wrong field.`,
}

// fieldsListCmd represents the fields list command
var fieldsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all Jira fields",
	Example: `  # List all fields
  jws fields list

  # Output as JSON
  jws fields list --json`,
	RunE: runFieldsList,
}

var fieldsDetectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show which story points and sprint fields a project uses",
	Example: `  jws fields detect --project MA`,
	RunE: runFieldsDetect,
}

// fieldsMapCmd represents the fields map command
var fieldsMapCmd = &cobra.Command{
	Use:   "map <alias> <field-id-or-name>",
	Short: "Create an alias for a custom field",
	Long: `Map a custom field ID to a human-readable alias.

The alias 'story_points' pins the story points field used by import and
export. The field ID must exist in your Jira instance; use 'jws fields list'
to find field IDs.`,
	Example: `  # Pin story points to customfield_10016
  jws fields map story_points customfield_10016

  # Or by field name
  jws fields map story_points "Story point estimate"`,
	Args: cobra.ExactArgs(2),
	RunE: runFieldsMap,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
	fieldsCmd.AddCommand(fieldsListCmd)
	fieldsCmd.AddCommand(fieldsDetectCmd)
	fieldsCmd.AddCommand(fieldsMapCmd)

	fieldsDetectCmd.Flags().StringVarP(&fieldsProject, "project", "p", "", "project key (default from config)")
	fieldsMapCmd.Flags().BoolVarP(&fieldsMapForce, "force", "f", false, "replace an existing alias")
}

// runFieldsList handles the fields list command
func runFieldsList(cmd *cobra.Command, args []string) error {
	fields, err := tracker.Fields.ListFields(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(fields)
	}
	return outputFieldsTable(fields)
}

func runFieldsDetect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectKey := strings.ToUpper(fieldsProject)
	if projectKey == "" {
		projectKey = cfg.DefaultProject
	}
	if projectKey == "" {
		return fmt.Errorf("--project is required (or set default_project)")
	}

	storyPoints, err := tracker.FindStoryPointsField(ctx, projectKey)
	if err != nil {
		return fmt.Errorf("story points discovery failed: %w", err)
	}
	sprint, err := tracker.FindSprintField(ctx, projectKey)
	if err != nil {
		return fmt.Errorf("sprint field discovery failed: %w", err)
	}

	if jsonOutput {
		return outputJSON(map[string]*jira.FieldRef{
			"story_points": storyPoints,
			"sprint":       sprint,
		})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tKEY\tNAME\tSOURCE\tON CREATE SCREEN")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	printFieldRef(w, "story points", storyPoints)
	printFieldRef(w, "sprint", sprint)
	w.Flush()
	return nil
}

func printFieldRef(w *tabwriter.Writer, label string, ref *jira.FieldRef) {
	if ref == nil {
		fmt.Fprintf(w, "%s\t-\tnot found\t\t\n", label)
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", label, ref.Key, ref.Name, ref.Source, ref.OnCreateScreen)
}

// runFieldsMap handles the fields map command
func runFieldsMap(cmd *cobra.Command, args []string) error {
	alias := args[0]
	if !isValidAlias(alias) {
		return fmt.Errorf("invalid alias '%s': alias must start with a letter and contain only letters, numbers, and underscores", alias)
	}
	if alias != config.StoryPointsAlias {
		fmt.Fprintf(os.Stderr, "Note: only '%s' changes how import and export behave\n", config.StoryPointsAlias)
	}

	// a field name or an existing alias works as well as an id
	fieldID, err := tracker.Fields.ResolveFieldID(cmd.Context(), args[1], cfg)
	if err != nil {
		return err
	}

	configPath := cfgFile
	if configPath == "" {
		if configPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	if err := tracker.Fields.SaveFieldMapping(cmd.Context(), alias, fieldID, fieldsMapForce, cfg, configPath); err != nil {
		return err
	}

	field, err := tracker.Fields.GetFieldByID(cmd.Context(), fieldID)
	if err != nil {
		fmt.Printf("✓ Mapped '%s' to '%s'\n", alias, fieldID)
		return nil
	}
	fmt.Printf("✓ Successfully mapped alias '%s' to field '%s' (%s)\n", alias, field.Name, fieldID)
	fmt.Printf("  Configuration saved to: %s\n", configPath)
	return nil
}

// outputFieldsTable outputs fields in a human-readable table format
func outputFieldsTable(fields []models.Field) error {
	var standardFields []models.Field
	var customFields []models.Field
	for _, field := range fields {
		if field.Custom {
			customFields = append(customFields, field)
		} else {
			standardFields = append(standardFields, field)
		}
	}

	sort.Slice(standardFields, func(i, j int) bool {
		return standardFields[i].Name < standardFields[j].Name
	})
	sort.Slice(customFields, func(i, j int) bool {
		return customFields[i].Name < customFields[j].Name
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	if len(standardFields) > 0 {
		fmt.Fprintln(w, "Standard Fields:")
		fmt.Fprintln(w, "ID\tNAME\tTYPE")
		fmt.Fprintln(w, strings.Repeat("-", 80))
		for _, field := range standardFields {
			fieldType := field.Schema.Type
			if field.Schema.System != "" {
				fieldType = field.Schema.System
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", field.ID, field.Name, fieldType)
		}
		w.Flush()
		fmt.Println()
	}

	if len(customFields) > 0 {
		fmt.Fprintln(w, "Custom Fields:")
		fmt.Fprintln(w, "ID\tNAME\tTYPE")
		fmt.Fprintln(w, strings.Repeat("-", 80))
		for _, field := range customFields {
			fmt.Fprintf(w, "%s\t%s\t%s\n", field.ID, field.Name, customType(field.Schema))
		}
		w.Flush()
	}

	fmt.Printf("\nTotal: %d fields (%d standard, %d custom)\n",
		len(fields), len(standardFields), len(customFields))

	if cfg != nil && len(cfg.FieldMappings) > 0 {
		fmt.Println("\nCurrent Field Mappings:")

		var aliases []string
		for alias := range cfg.FieldMappings {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)

		fmt.Fprintln(w, "ALIAS\tFIELD ID")
		fmt.Fprintln(w, strings.Repeat("-", 40))
		for _, alias := range aliases {
			fmt.Fprintf(w, "%s\t%s\n", alias, cfg.FieldMappings[alias])
		}
		w.Flush()
	}

	return nil
}

// customType shortens a custom schema type, e.g.
// "com.pyxis.greenhopper.jira:gh-sprint" to "gh-sprint"
func customType(schema models.FieldSchema) string {
	if schema.Custom == "" {
		return schema.Type
	}
	parts := strings.Split(schema.Custom, ":")
	return parts[len(parts)-1]
}

// aliasPattern matches a config key: a letter, then letters, digits or '_'
var aliasPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func isValidAlias(alias string) bool {
	return aliasPattern.MatchString(alias)
}
