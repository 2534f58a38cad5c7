// cmd/eagerclean-migrate/main.go
package main

import (
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "eagerclean-migrate"}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending finalize_records migrations",
	Run: func(cmd *cobra.Command, args []string) {
		m, _ := newMigrate(cmd)
		defer m.Close()
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			fmt.Printf("Failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent finalize_records migration",
	Run: func(cmd *cobra.Command, args []string) {
		m, _ := newMigrate(cmd)
		defer m.Close()
		if err := m.Steps(-1); err != nil && err != migrate.ErrNoChange {
			fmt.Printf("Failed to roll back migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migration rolled back successfully")
	},
}

func newMigrate(cmd *cobra.Command) (*migrate.Migrate, string) {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or failed to load: %v. Using --db flag.\n", err)
	}

	connStr, _ := cmd.Flags().GetString("db")
	if connStr == "" {
		connStr = os.Getenv("DATABASE_URL")
	}
	if connStr == "" {
		fmt.Println("Error: --db flag or DATABASE_URL env var required")
		os.Exit(1)
	}

	m, err := migrate.New("file://migrations", connStr)
	if err != nil {
		fmt.Printf("Failed to initialize migrations: %v\n", err)
		os.Exit(1)
	}
	return m, connStr
}

func main() {
	rootCmd.AddCommand(upCmd, downCmd)
	for _, c := range []*cobra.Command{upCmd, downCmd} {
		c.Flags().String("db", "", "Postgres connection string (optional if DATABASE_URL is set)")
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
