package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Dosada05/tennis-tournament/models"
	"github.com/Dosada05/tennis-tournament/repositories"
	"github.com/Dosada05/tennis-tournament/services"
	"github.com/Dosada05/tennis-tournament/utils"
)

// newCreateAdminCmd bootstraps the first administrator. Sign-up never
// grants the administrator role.
func newCreateAdminCmd() *cobra.Command {
	var input services.UserInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			stores, err := repositories.Open(cmd.Context(), cfg, true)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer stores.Close()

			userService := services.NewUserService(
				stores.Users,
				utils.NewBcryptHasher(cfg.BcryptCost),
				services.LogNotifier{Logger: logger},
				logger,
			)

			input.Role = string(models.RoleAdmin)
			user, err := userService.AddUser(cmd.Context(), input)
			if err != nil {
				return err
			}

			logger.Info("administrator created", slog.Int("user_id", user.ID), slog.String("username", user.Username))
			fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&input.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&input.Email, "email", "", "Email address for notifications")
	cmd.Flags().StringVar(&input.Password, "password", "", "Initial password")
	for _, name := range []string{"username", "name", "email", "password"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
