package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"douyindl/pkg/config"
	"douyindl/pkg/douyin"
	"douyindl/pkg/ui"
)

// usersCmd represents the users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage saved users",
	Long: `Save profiles under a short name so they can be downloaded with
'douyindl download <name>'. Saved users live in the configuration file; their
nickname and id are refreshed after every successful download.`,
}

var usersAddCmd = &cobra.Command{
	Use:     "add <name> <profile-url>",
	Short:   "Save a profile under a name",
	Example: `  douyindl users add alice https://www.douyin.com/user/MS4wLjABAAAA...`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runUsersAdd,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved users",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Forget a saved user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersRemove,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersRemoveCmd)
}

// newSavedUser builds a saved user from a name and pasted profile input
func newSavedUser(name string, input string, now time.Time) config.SavedUser {
	u := config.SavedUser{
		Name:    strings.TrimSpace(name),
		URL:     douyin.NormalizeInput(input),
		AddedAt: now,
	}
	if id, ok := douyin.ExtractSecUserID(u.URL); ok {
		u.SecUserID = id
		u.URL = douyin.UserURL(id)
	}
	return u
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	u := newSavedUser(args[0], strings.Join(args[1:], " "), time.Now())

	path, err := updateConfigFile(func(cfg *config.Config) bool {
		cfg.AddUser(u)
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Saved %s (%s)", u.Name, u.URL))
	ui.PrintInfo("Config", path)
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	if len(cfg.Users) == 0 {
		ui.PrintInfo("No saved users", "Use 'douyindl users add <name> <url>' to add one")
		return nil
	}

	ui.PrintHighlight("Saved Users")
	fmt.Fprintln(ui.Output)
	for i, u := range cfg.Users {
		nickname := u.Nickname
		if nickname == "" {
			nickname = ui.Dim("(not downloaded yet)")
		}
		fmt.Fprintf(ui.Output, "%d. %s  %s\n", i+1, ui.Bold(u.Name), nickname)
		fmt.Fprintf(ui.Output, "   %s\n", u.URL)
		fmt.Fprintf(ui.Output, "   added %s\n\n", u.AddedAt.Format("2006-01-02"))
	}
	return nil
}

func runUsersRemove(cmd *cobra.Command, args []string) error {
	var removed bool
	_, err := updateConfigFile(func(cfg *config.Config) bool {
		removed = cfg.RemoveUser(args[0])
		return removed
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no saved user named %q", args[0])
	}
	ui.PrintSuccess("Removed " + args[0])
	return nil
}
