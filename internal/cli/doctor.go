package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/version"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the warden environment",
		Long: `Comprehensive environment health check for warden.

Validates:
- Directory structure (~/.warden/)
- Config file readable and parseable
- Database openable with all schema tables present
- Webhook connectors configured
- Binary installation and PATH

Examples:
  warden doctor              # Run full health check
  warden doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := []CheckResult{}
			hasErrors := false

			results = append(results, checkDirectories())
			results = append(results, checkConfig())
			results = append(results, checkDatabase())
			results = append(results, checkConnectors())
			results = append(results, checkBinary())

			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				// Print compact table
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				// Print details for non-passing checks
				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Println("\n⚠ Issues found. Run 'warden init' to repair the environment.")
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

// checkDirectories validates required directory structure
func checkDirectories() CheckResult {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return CheckResult{Name: "Directories", Status: "✗", Details: "  Cannot get home directory"}
	}

	missing := []string{}

	wardenDir := filepath.Join(homeDir, ".warden")
	if _, err := os.Stat(wardenDir); os.IsNotExist(err) {
		missing = append(missing, "~/.warden/")
	}

	dbPath := filepath.Join(wardenDir, "warden.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		missing = append(missing, "~/.warden/warden.db")
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:    "Directories",
			Status:  "✗",
			Details: "  Missing: " + strings.Join(missing, ", ") + "\n  Run: warden init",
		}
	}

	return CheckResult{Name: "Directories", Status: "✓"}
}

// checkConfig validates the config file parses
func checkConfig() CheckResult {
	path, err := config.Path()
	if err != nil {
		return CheckResult{
			Name:    "Config",
			Status:  "✗",
			Details: fmt.Sprintf("  Cannot resolve config path: %v", err),
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:    "Config",
			Status:  "⚠",
			Details: fmt.Sprintf("  %s not found (defaults in effect)\n  Run: warden init", path),
		}
	}

	if _, err := config.LoadFile(path); err != nil {
		return CheckResult{
			Name:    "Config",
			Status:  "✗",
			Details: fmt.Sprintf("  Cannot parse %s: %v", path, err),
		}
	}

	return CheckResult{Name: "Config", Status: "✓"}
}

// checkDatabase validates the database opens and carries the full schema
func checkDatabase() CheckResult {
	database, err := db.GetDB()
	if err != nil {
		return CheckResult{
			Name:    "Database",
			Status:  "✗",
			Details: fmt.Sprintf("  Cannot open database: %v", err),
		}
	}

	required := []string{
		"audit_log", "proposals", "decisions", "policy_rules",
		"approval_assignments", "async_jobs", "executions",
		"playbook_templates", "template_steps", "playbook_runs", "run_steps",
		"evidence_objects", "explainability_links", "reasoning_ledger", "outbox",
	}

	missing := []string{}
	for _, table := range required {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			missing = append(missing, table)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:    "Database",
			Status:  "✗",
			Details: "  Missing tables: " + strings.Join(missing, ", ") + "\n  Run: warden init",
		}
	}

	return CheckResult{Name: "Database", Status: "✓"}
}

// checkConnectors reports configured webhook connectors
func checkConnectors() CheckResult {
	cfg, err := config.Load()
	if err != nil {
		return CheckResult{
			Name:    "Connectors",
			Status:  "✗",
			Details: fmt.Sprintf("  Cannot load config: %v", err),
		}
	}

	if len(cfg.Webhooks) == 0 {
		path, _ := config.Path()
		return CheckResult{
			Name:    "Connectors",
			Status:  "⚠",
			Details: "  No webhook connectors configured; only log_message is available\n  Add webhooks to " + path,
		}
	}

	names := make([]string, 0, len(cfg.Webhooks))
	for action := range cfg.Webhooks {
		names = append(names, action)
	}
	return CheckResult{Name: "Connectors", Status: "✓", Details: "  " + strings.Join(names, ", ")}
}

// checkBinary validates warden binary installation
func checkBinary() CheckResult {
	wardenPath, err := exec.LookPath("warden")
	if err != nil {
		return CheckResult{
			Name:    "Binary",
			Status:  "⚠",
			Details: "  'warden' not found in PATH\n  Run: make install",
		}
	}

	return CheckResult{Name: "Binary", Status: "✓", Details: fmt.Sprintf("  %s (%s)", wardenPath, version.String())}
}
