package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"fightgen/pkg/auth"
	"fightgen/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginBaseURL string
	logoutAll    bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API keys",
	Long: `Manage stored generation API keys.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your API keys or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API key",
	Long: `Store an API key under an account name (default "default").

The key is read without echo. It can also be piped in:
  echo "$KEY" | fightgen auth login work`,
	Example: `  # Interactive login
  fightgen auth login

  # Key for a compatible proxy
  fightgen auth login local --base-url http://localhost:8080/v1/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Long:  `List stored accounts with masked keys.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "API base URL used with this key")
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := "default"
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	reader := bufio.NewReader(os.Stdin)

	if interactive {
		if !ui.IsQuietMode() {
			auth.ShowAPIKeyGuide(os.Stdout)
			fmt.Println()
		}
		if existing, _ := manager.Retrieve(name); existing != nil {
			fmt.Printf("⚠️  Account '%s' already exists. Replace its key? (y/N): ", name)
			input, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
				return nil
			}
		}
		fmt.Print("🔐 API key (hidden): ")
	}

	key, err := readSecret(reader, interactive)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if interactive {
		fmt.Println()
	}
	if len(key) < 8 {
		return errors.New("that does not look like an API key")
	}

	account := &auth.Account{Name: name, APIKey: key, BaseURL: loginBaseURL}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s (%s)", name, auth.MaskKey(key)))
	if name != "default" {
		fmt.Printf("\nUse it with:\n  fightgen generate --account %s\n", name)
	}
	return nil
}

// readSecret reads a key without echo from a terminal, or one line otherwise
func readSecret(reader *bufio.Reader, interactive bool) (string, error) {
	if interactive {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	name := "default"
	if len(args) > 0 {
		name = args[0]
	}
	if err := manager.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "use 'fightgen auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()
	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. %s\n", i+1, sanitized.Name)
		fmt.Printf("   API key: %s\n", sanitized.APIKey)
		if sanitized.BaseURL != "" {
			fmt.Printf("   Base URL: %s\n", sanitized.BaseURL)
		}
		if sanitized.Name != auth.EnvAccountName {
			fmt.Printf("   Last modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
	return nil
}
