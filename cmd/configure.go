package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sanisideup/jira-workspace-sync/pkg/client"
	"github.com/sanisideup/jira-workspace-sync/pkg/config"
	"github.com/sanisideup/jira-workspace-sync/pkg/secrets"
)

// configureCmd represents the configure command
var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure Jira credentials and the workspace file",
	Long: `Interactive setup wizard to configure your Jira Cloud credentials.
You will need:
- Your Jira domain (e.g., yourcompany.atlassian.net)
- Your email address
- An API token (create one at https://id.atlassian.com/manage/api-tokens)

The credentials are checked against Jira before anything is saved.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

// prompt prints label and returns the trimmed answer
func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// normalizeDomain accepts a pasted site URL, e.g.
// "https://acme.atlassian.net/jira/software" becomes "acme.atlassian.net"
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	return strings.ToLower(domain)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== jws configuration ===")
	fmt.Println()

	domain, err := prompt(reader, "Jira domain (e.g., yourcompany.atlassian.net): ")
	if err != nil {
		return fmt.Errorf("failed to read domain: %w", err)
	}
	domain = normalizeDomain(domain)
	if domain == "" {
		return fmt.Errorf("domain cannot be empty")
	}

	email, err := prompt(reader, "Email address: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	fmt.Println("API token (create one at https://id.atlassian.com/manage/api-tokens):")
	apiToken, err := prompt(reader, "> ")
	if err != nil {
		return fmt.Errorf("failed to read API token: %w", err)
	}
	if apiToken == "" {
		return fmt.Errorf("API token cannot be empty")
	}

	defaultProject, err := prompt(reader, "Default project key (optional, press Enter to skip): ")
	if err != nil {
		return fmt.Errorf("failed to read default project: %w", err)
	}

	workspaceFile, err := prompt(reader, "Workspace file (press Enter for ~/.jws/workspace.yaml): ")
	if err != nil {
		return fmt.Errorf("failed to read workspace file: %w", err)
	}

	newCfg := &config.Config{
		Domain:            domain,
		Email:             email,
		APIToken:          apiToken,
		DefaultProject:    strings.ToUpper(defaultProject),
		WorkspaceFile:     workspaceFile,
		FieldMappings:     make(map[string]string),
		ImportConcurrency: config.DefaultImportConcurrency,
		IssueType:         config.DefaultIssueType,
	}

	fmt.Println()
	fmt.Println("Validating credentials...")
	user, err := client.New(newCfg.Credentials()).ValidateCredentials(cmd.Context())
	if err != nil {
		return fmt.Errorf("credential validation failed: %w", err)
	}
	fmt.Printf("✓ Successfully authenticated as: %s (%s)\n", user.DisplayName, user.EmailAddress)
	fmt.Println()

	answer, err := prompt(reader, "Store API token securely in system keyring? [Y/n]: ")
	if err != nil {
		return fmt.Errorf("failed to read keyring preference: %w", err)
	}
	answer = strings.ToLower(answer)

	if answer == "" || answer == "y" || answer == "yes" {
		store := secrets.NewStore(secrets.BackendAuto)
		backend := store.GetBackend()

		if err := store.SetToken(email, apiToken); err != nil {
			fmt.Printf("Warning: Failed to store token in %s: %v\n", backend, err)
			fmt.Println("Falling back to storing token in config file.")
		} else {
			fmt.Printf("✓ API token stored securely in %s\n", backend)
			newCfg.APIToken = ""
			newCfg.UseKeyring = true
			newCfg.KeyringBackend = string(backend)
		}
	}

	configPath := cfgFile
	if configPath == "" {
		if configPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	}
	if err := newCfg.SaveTo(configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✓ Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("You're all set! Try 'jws check' and 'jws projects'.")
	return nil
}
