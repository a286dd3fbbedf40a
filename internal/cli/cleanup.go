package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tokostore/internal/database"
	"tokostore/internal/repositories"
	"tokostore/internal/services"
)

var cleanupTokensCmd = &cobra.Command{
	Use:   "cleanup-tokens",
	Short: "Delete expired and revoked refresh tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		store := repositories.NewGORMStore(db)
		deleted, err := services.NewAuthService(store.Users(), store.RefreshTokens(), cfg.Auth).CleanupTokens(cmd.Context())
		if err != nil {
			return err
		}
		logrus.WithField("refresh_tokens", deleted).Info("token cleanup completed")
		fmt.Fprintf(cmd.OutOrStdout(), "%d refresh tokens deleted\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupTokensCmd)
}
