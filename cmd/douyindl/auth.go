package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"douyindl/pkg/auth"
	"douyindl/pkg/ui"
)

var logoutAll bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Douyin cookies",
	Long: `Manage stored Douyin web cookies.

Cookies are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The DOUYINDL_COOKIE environment variable (read only)

Never share your cookie or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store a Douyin cookie securely",
	Long: `Store a Douyin web cookie in the system keychain or an encrypted file.

You will be prompted for:
  - The Cookie header copied from your browser (hidden as you type)
  - User Agent (optional, press Enter for default)

The name defaults to "default". The first stored account becomes active.`,
	Example: `  # Interactive login
  douyindl auth login

  # Store a second account
  douyindl auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored cookies",
	Long: `Remove a stored Douyin cookie.

Without a name the active account is removed. Use --all to remove every
stored account.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked cookies.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// switchCmd represents the auth switch command
var switchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Choose the account used by default",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(switchCmd)

	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove all stored accounts")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowCookieExtractionGuide(ui.Output)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Fprintf(ui.Output, "Account '%s' already exists. Update its cookie? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	var cookie string
	for {
		fmt.Fprint(ui.Output, "Cookie header value: ")
		cookie, err = readSecret(reader)
		if err != nil {
			return fmt.Errorf("failed to read cookie: %w", err)
		}
		if strings.EqualFold(cookie, "help") {
			auth.ShowCookieExtractionGuide(ui.Output)
			continue
		}

		if err := auth.ValidateCookie(cookie); err != nil {
			ui.PrintError("That doesn't look like a Cookie header", err.Error())
			auth.ShowQuickExtractGuide(ui.Output)
			continue
		}
		if !auth.HasSession(cookie) {
			ui.PrintWarning("The cookie has no sessionid; it may only work for a while")
		}
		break
	}

	fmt.Fprint(ui.Output, "\nUser Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	account := &auth.Account{
		Name:      name,
		Cookie:    cookie,
		UserAgent: userAgent,
	}

	fmt.Fprintln(ui.Output, "\nStoring cookie securely...")
	if err := manager.Store(account); err != nil {
		return err
	}

	if manager.Active() == "" {
		if err := manager.SetActive(name); err == nil {
			fmt.Fprintf(ui.Output, "Set '%s' as the active account\n", name)
		}
	}

	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", name))
	fmt.Fprintln(ui.Output, "\nYour cookie is stored in:")
	if manager.UsesKeyring() {
		fmt.Fprintln(ui.Output, "   • System keychain (primary)")
	}
	fmt.Fprintln(ui.Output, "   • Encrypted file (backup)")
	fmt.Fprintln(ui.Output, "\nDownload a profile with:")
	fmt.Fprintln(ui.Output, "   $ douyindl download <profile-url>")
	if name != auth.DefaultAccount {
		fmt.Fprintf(ui.Output, "   $ douyindl download <profile-url> --account %s\n", name)
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	var name string
	switch {
	case len(args) > 0:
		name = args[0]
	case manager.Active() != "":
		name = manager.Active()
	default:
		name = auth.DefaultAccount
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
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'douyindl auth login' to add one")
		return nil
	}

	active := manager.Active()
	ui.PrintHighlight("Stored Accounts")
	fmt.Fprintln(ui.Output)

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		marker := ""
		if sanitized.Name == active {
			marker = ui.Green(" (active)")
		}
		fmt.Fprintf(ui.Output, "%d. %s%s\n", i+1, sanitized.Name, marker)
		fmt.Fprintf(ui.Output, "   Cookie: %s\n", sanitized.Cookie)
		if sanitized.UserAgent != "" {
			fmt.Fprintf(ui.Output, "   User Agent: %s\n", sanitized.UserAgent)
		}
		fmt.Fprintf(ui.Output, "   Last Modified: %s\n\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runSwitch(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.SetActive(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Active account: " + args[0])
	return nil
}

// readSecret reads a line from stdin without echoing when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(ui.Output)
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
