package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"demand-foresight/internal/app"
	"demand-foresight/internal/model"
	"demand-foresight/internal/repository"
)

var (
	userRole     string
	userPassword string
)

func init() {
	userAddCmd.Flags().StringVar(&userRole, "role", string(model.RoleMember), "account role (admin or member)")
	userAddCmd.Flags().StringVar(&userPassword, "password", "", "initial password (default $FORESIGHT_PASSWORD)")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Long: `Create an account directly in the store.

Examples:
  foresightctl user add alice
  FORESIGHT_PASSWORD=s3cret-pass foresightctl user add ops --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	password := userPassword
	if password == "" {
		password = os.Getenv("FORESIGHT_PASSWORD")
	}
	if password == "" {
		return errors.New("password is required: pass --password or set FORESIGHT_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	auth := app.NewAuthService(repository.NewUserRepository(e.db), e.cfg.Auth.JWTSecret, time.Minute, e.cfg.Auth.FrontendURL, e.logger)
	user, err := auth.CreateUser(ctx, operator, app.CreateUserInput{
		Username: args[0],
		Password: password,
		Role:     model.Role(userRole),
	})
	if err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", user.Username, user.Role)
	return nil
}
