package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newswire-app/newswire/internal/reaction"
	"github.com/newswire-app/newswire/internal/store"

	"github.com/spf13/cobra"
)

var promoteEmail string

// promoteCmd bootstraps the first admin; later promotions can go
// through the admin page.
var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Grant admin rights to an account by email",
	RunE: func(cmd *cobra.Command, args []string) error {
		if promoteEmail == "" {
			return errors.New("--email is required")
		}
		cfg := GetConfig()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := reaction.New(st).Promote(ctx, promoteEmail); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no account for %s, they need to sign in first", promoteEmail)
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", promoteEmail)
		return nil
	},
}

func init() {
	promoteCmd.Flags().StringVar(&promoteEmail, "email", "", "account email to promote")
	rootCmd.AddCommand(promoteCmd)
}
