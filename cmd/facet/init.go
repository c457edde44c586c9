package main

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/facet-db/facet/internal/cli/config"
	"github.com/facet-db/facet/internal/cli/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a facet.yml configuration file",
	Long:  "Interactively create a facet.yml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.InProject() {
			return fmt.Errorf("facet.yml already exists in this directory")
		}

		answers := struct {
			Driver         string
			DatabaseURL    string
			SQLitePath     string
			RedisEnabled   bool
			RedisAddr      string
			ConflictPolicy string
			AuthSecret     string
			Port           int
		}{}

		if err := survey.AskOne(&survey.Select{
			Message: "Storage backend:",
			Options: []string{"memory", "sqlite", "postgres"},
			Default: "sqlite",
		}, &answers.Driver); err != nil {
			return err
		}

		switch answers.Driver {
		case "postgres":
			if err := survey.AskOne(&survey.Input{
				Message: "Database URL:",
				Default: "postgres://localhost/facet?sslmode=disable",
			}, &answers.DatabaseURL, survey.WithValidator(survey.Required)); err != nil {
				return err
			}
		case "sqlite":
			if err := survey.AskOne(&survey.Input{
				Message: "Database file:",
				Default: "facet.db",
			}, &answers.SQLitePath, survey.WithValidator(survey.Required)); err != nil {
				return err
			}
		}

		if err := survey.AskOne(&survey.Confirm{
			Message: "Use redis for counters and schema caching?",
			Default: false,
		}, &answers.RedisEnabled); err != nil {
			return err
		}
		if answers.RedisEnabled {
			if err := survey.AskOne(&survey.Input{
				Message: "Redis address:",
				Default: "localhost:6379",
			}, &answers.RedisAddr, survey.WithValidator(survey.Required)); err != nil {
				return err
			}
		}

		if err := survey.AskOne(&survey.Select{
			Message: "Inheritance conflict policy:",
			Options: []string{"merge", "root_wins"},
			Default: "merge",
			Help:    "merge: the nearest ancestor wins a shared attribute name; root_wins: the outermost ancestor wins",
		}, &answers.ConflictPolicy); err != nil {
			return err
		}

		if err := survey.AskOne(&survey.Input{
			Message: "Auth secret (empty disables auth):",
		}, &answers.AuthSecret); err != nil {
			return err
		}

		portStr := "8080"
		if err := survey.AskOne(&survey.Input{
			Message: "HTTP port:",
			Default: "8080",
		}, &portStr); err != nil {
			return err
		}
		if _, err := fmt.Sscanf(portStr, "%d", &answers.Port); err != nil || answers.Port <= 0 || answers.Port > 65535 {
			return fmt.Errorf("invalid port %q", portStr)
		}

		content := renderConfig(answers.Driver, answers.DatabaseURL, answers.SQLitePath,
			answers.RedisEnabled, answers.RedisAddr, answers.ConflictPolicy, answers.AuthSecret, answers.Port)
		if err := os.WriteFile("facet.yml", []byte(content), 0644); err != nil {
			return fmt.Errorf("write facet.yml: %w", err)
		}

		ui.WriteSuccess(os.Stdout, "created facet.yml", false)
		summary := ui.NewKeyValueTable(os.Stdout, false)
		summary.AddRow("driver", answers.Driver)
		summary.AddRow("conflict_policy", answers.ConflictPolicy)
		if answers.RedisEnabled {
			summary.AddRow("redis", answers.RedisAddr)
		}
		summary.AddRow("port", portStr)
		summary.Render()

		fmt.Println("\nNext steps:")
		if answers.Driver != "memory" {
			fmt.Println("  facet migrate")
		}
		fmt.Println("  facet serve")
		return nil
	},
}

func renderConfig(driver, databaseURL, sqlitePath string, redisEnabled bool, redisAddr, policy, secret string, port int) string {
	var b []byte
	b = fmt.Appendf(b, "database:\n  driver: %s\n", driver)
	if databaseURL != "" {
		b = fmt.Appendf(b, "  url: %s\n", databaseURL)
	}
	if sqlitePath != "" {
		b = fmt.Appendf(b, "  path: %s\n", sqlitePath)
	}
	b = fmt.Appendf(b, "redis:\n  enabled: %t\n", redisEnabled)
	if redisEnabled {
		b = fmt.Appendf(b, "  addr: %s\n", redisAddr)
	}
	b = fmt.Appendf(b, "server:\n  host: 0.0.0.0\n  port: %d\n", port)
	b = fmt.Appendf(b, "hierarchy:\n  conflict_policy: %s\n", policy)
	if secret != "" {
		b = fmt.Appendf(b, "auth:\n  secret: %s\n  token_ttl: 24h\n", secret)
	}
	return string(b)
}
