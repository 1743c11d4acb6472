// Command accounts is the operator-facing shell around the account pool
// file: a minimal Cobra command set to add, list, and remove accounts
// without hand-editing the JSON store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/awsl-project/antigravity-relay/internal/account"
	"github.com/awsl-project/antigravity-relay/internal/config"
	"github.com/awsl-project/antigravity-relay/internal/domain"
)

func main() {
	cfg := config.Load()
	var accountsFile string

	root := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the translating proxy's account pool",
	}
	root.PersistentFlags().StringVar(&accountsFile, "file", cfg.AccountsFile, "path to the accounts JSON file")

	root.AddCommand(
		newListCmd(&accountsFile),
		newAddCmd(&accountsFile),
		newRemoveCmd(&accountsFile),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newListCmd(accountsFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every account in the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := account.NewStore(*accountsFile).Load()
			if err != nil {
				return fmt.Errorf("loading accounts: %w", err)
			}
			if len(pool.Accounts) == 0 {
				fmt.Println("no accounts configured")
				return nil
			}
			for i, a := range pool.Accounts {
				marker := " "
				if i == pool.ActiveIndex {
					marker = "*"
				}
				fmt.Printf("%s %-32s source=%-8s project=%s\n", marker, a.Email, a.Source, a.ProjectID)
			}
			return nil
		},
	}
}

func newAddCmd(accountsFile *string) *cobra.Command {
	var email, refreshToken, projectID string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account to the pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || refreshToken == "" {
				return fmt.Errorf("--email and --refresh-token are required")
			}
			store := account.NewStore(*accountsFile)
			pool, err := store.Load()
			if err != nil {
				return fmt.Errorf("loading accounts: %w", err)
			}
			for _, a := range pool.Accounts {
				if a.Email == email {
					return fmt.Errorf("account %s already exists", email)
				}
			}
			pool.Accounts = append(pool.Accounts, &domain.Account{
				Email:        email,
				Source:       domain.SourceManual,
				RefreshToken: refreshToken,
				ProjectID:    projectID,
			})
			if err := store.Save(pool); err != nil {
				return fmt.Errorf("saving accounts: %w", err)
			}
			fmt.Printf("added %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().StringVar(&projectID, "project-id", "", "pinned GCP project id (optional)")
	return cmd
}

func newRemoveCmd(accountsFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [email]",
		Short: "Remove an account from the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := account.NewStore(*accountsFile)
			pool, err := store.Load()
			if err != nil {
				return fmt.Errorf("loading accounts: %w", err)
			}
			email := args[0]
			kept := pool.Accounts[:0]
			found := false
			for _, a := range pool.Accounts {
				if a.Email == email {
					found = true
					continue
				}
				kept = append(kept, a)
			}
			if !found {
				return fmt.Errorf("account %s not found", email)
			}
			pool.Accounts = kept
			if pool.ActiveIndex >= len(pool.Accounts) {
				pool.ActiveIndex = 0
			}
			if err := store.Save(pool); err != nil {
				return fmt.Errorf("saving accounts: %w", err)
			}
			fmt.Printf("removed %s\n", email)
			return nil
		},
	}
}
