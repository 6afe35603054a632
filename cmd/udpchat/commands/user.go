package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/output"
	"github.com/agonych/udp-chat/internal/cli/prompt"
	"github.com/agonych/udp-chat/pkg/auth"
	"github.com/agonych/udp-chat/pkg/config"
	"github.com/agonych/udp-chat/pkg/store"
	"github.com/agonych/udp-chat/pkg/store/models"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management",
	Long: `Manage chat accounts directly in the server database.

Accounts are provisioned automatically on first login with no password.
Setting a password makes it required from then on.

Examples:
  # List all users
  udpchat user list

  # Set a password for an account
  udpchat user set-password ann@example.com

  # Return an account to email-only login
  udpchat user set-password --clear ann@example.com`,
}

var (
	userListOutput   string
	setPasswordClear bool
	setPasswordStdin bool
)

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List all accounts known to the server.

Examples:
  # List users as table
  udpchat user list

  # List as JSON
  udpchat user list -o json`,
	RunE: runUserList,
}

var userSetPasswordCmd = &cobra.Command{
	Use:   "set-password <email>",
	Short: "Set or clear an account password",
	Long: `Set the password for the account with the given email address.

The password is prompted for interactively and stored hashed with the
scheme from the auth configuration. Use --clear to remove the password,
returning the account to email-only login.

Examples:
  # Set a password interactively
  udpchat user set-password ann@example.com

  # Clear the password
  udpchat user set-password --clear ann@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runUserSetPassword,
}

func init() {
	userListCmd.Flags().StringVarP(&userListOutput, "output", "o", "table", "Output format (table|json|yaml)")
	userSetPasswordCmd.Flags().BoolVar(&setPasswordClear, "clear", false, "Remove the password instead of setting one")
	userSetPasswordCmd.Flags().BoolVar(&setPasswordStdin, "password-stdin", false, "Read the password from stdin instead of prompting")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userSetPasswordCmd)
}

// openStore loads the configuration and opens the chat store for a
// maintenance command.
func openStore() (*config.Config, *store.GORMStore, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.Database.ToStoreConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return cfg, st, nil
}

// UserList renders users as a table.
type UserList []*models.User

// Headers implements TableRenderer.
func (ul UserList) Headers() []string {
	return []string{"EMAIL", "NAME", "USER ID", "PASSWORD", "ADMIN", "LAST ACTIVE"}
}

// Rows implements TableRenderer.
func (ul UserList) Rows() [][]string {
	rows := make([][]string, 0, len(ul))
	for _, u := range ul {
		password := "-"
		if u.HasPassword() {
			password = "set"
		}
		admin := "no"
		if u.IsAdmin {
			admin = "yes"
		}
		lastActive := "-"
		if u.LastActiveAt > 0 {
			lastActive = time.Unix(u.LastActiveAt, 0).Format(time.RFC3339)
		}
		rows = append(rows, []string{u.Email, u.Name, u.UserID, password, admin, lastActive})
	}
	return rows
}

func runUserList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(userListOutput)
	if err != nil {
		return err
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, users)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, users)
	default:
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}
		return output.PrintTable(os.Stdout, UserList(users))
	}
}

func runUserSetPassword(cmd *cobra.Command, args []string) error {
	// The server stores emails lowercase
	email := strings.ToLower(strings.TrimSpace(args[0]))

	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	hash := ""
	if !setPasswordClear {
		var password string
		if setPasswordStdin {
			if _, err := fmt.Fscanln(os.Stdin, &password); err != nil {
				return fmt.Errorf("failed to read password from stdin: %w", err)
			}
		} else {
			password, err = prompt.PasswordWithConfirmation("New password", "Confirm new password", 1)
			if err != nil {
				if prompt.IsAborted(err) {
					return nil
				}
				return err
			}
		}

		hasher, err := auth.NewHasher(auth.Scheme(cfg.Auth.PasswordHash))
		if err != nil {
			return err
		}
		hash, err = hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
	}

	if err := st.SetUserPassword(ctx, email, hash); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return fmt.Errorf("no account with email %q; accounts are created on first login", email)
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	if setPasswordClear {
		output.DefaultPrinter().Success(fmt.Sprintf("Password cleared for %s (email-only login)", email))
	} else {
		output.DefaultPrinter().Success(fmt.Sprintf("Password set for %s", email))
	}
	return nil
}
