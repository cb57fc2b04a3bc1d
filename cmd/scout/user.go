package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage tenant users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create [provider] [external-id]",
	Short: "Create a user (or return the existing one)",
	Long: `Create the user for an auth provider identity. Creation is an
upsert: an existing user is returned unchanged, so the printed API
key is stable across calls.

Examples:
  scout user create google 1234 --email dev@example.com --name "Dev"
  scout user create github 98765`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		provider := args[0]

		store := mustOpenStore()
		defer func() { _ = store.Close() }()

		u, err := store.GetOrCreateUser(rootCtx, &types.User{
			UserID:   types.FormatUserID(provider, args[1]),
			Email:    email,
			Name:     name,
			Provider: provider,
		})
		if err != nil {
			FatalErrorRespectJSON("create user: %v", err)
		}

		if jsonOutput {
			outputJSON(u)
			return
		}
		fmt.Printf("User:    %s\n", u.UserID)
		if u.Email != "" {
			fmt.Printf("Email:   %s\n", u.Email)
		}
		fmt.Printf("API key: %s\n", u.APIKey)
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show [user-id|api-key]",
	Short: "Show a user by id or API key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]

		store := mustOpenStore()
		defer func() { _ = store.Close() }()

		u, err := lookupUser(store, key)
		if err != nil {
			FatalErrorRespectJSON("user %s: %v", key, err)
		}

		if jsonOutput {
			outputJSON(u)
			return
		}
		fmt.Printf("User:       %s\n", u.UserID)
		if u.Name != "" {
			fmt.Printf("Name:       %s\n", u.Name)
		}
		if u.Email != "" {
			fmt.Printf("Email:      %s\n", u.Email)
		}
		if u.Provider != "" {
			fmt.Printf("Provider:   %s\n", u.Provider)
		}
		fmt.Printf("Created:    %s\n", u.CreatedAt.Format(time.RFC3339))
		if u.LastLogin != nil {
			fmt.Printf("Last login: %s\n", u.LastLogin.Format(time.RFC3339))
		}
	},
}

// lookupUser resolves an argument that is either a user id or an API
// key. Ids carry a "provider:" prefix, keys an "sk_" prefix, so the id
// lookup is tried first and the key lookup only on a miss.
func lookupUser(store storage.Store, key string) (*types.User, error) {
	u, err := store.GetUser(rootCtx, key)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if strings.HasPrefix(key, "sk_") {
		return store.GetUserByAPIKey(rootCtx, key)
	}
	return nil, err
}

func init() {
	userCreateCmd.Flags().String("email", "", "Email address")
	userCreateCmd.Flags().String("name", "", "Display name")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userShowCmd)

	rootCmd.AddCommand(userCmd)
}
