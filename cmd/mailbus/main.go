package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"github.com/spf13/cobra"

	"github.com/quantonganh/mailbus"
	"github.com/quantonganh/mailbus/auth"
	"github.com/quantonganh/mailbus/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mailbus",
	Short:         "Newsletter delivery service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage publishers",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a publisher allowed to send newsletter issues",
	RunE:  runUsersAdd,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml or ./config/config.yaml)")

	usersAddCmd.Flags().String("username", "", "publisher username")
	usersAddCmd.Flags().String("password", "", "publisher password")
	_ = usersAddCmd.MarkFlagRequired("username")
	_ = usersAddCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersAddCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*mailbus.Config, error) {
	config, err := mailbus.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(config.Log.Level, config.Log.Format, os.Stdout)
	return config, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn: config.Sentry.DSN,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(config)
	if err := a.Run(ctx); err != nil {
		_ = a.Close()
		return err
	}
	log.Info().Str("url", a.httpServer.URL()).Msg("Mailbus is listening")

	<-ctx.Done()

	return a.Close()
}

func runMigrate(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStorage(config)
	if err != nil {
		return err
	}
	defer s.db.Close()

	log.Info().Str("type", config.DB.Type).Msg("Database is up to date")
	return nil
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password, argon2Params(config))
	if err != nil {
		return err
	}

	s, err := openStorage(config)
	if err != nil {
		return err
	}
	defer s.db.Close()

	u := &mailbus.User{
		ID:           uuid.NewV4().String(),
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Insert(context.Background(), u); err != nil {
		return err
	}

	log.Info().Str("user_id", u.ID).Str("username", username).Msg("Publisher added")
	return nil
}
