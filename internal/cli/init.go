package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/db"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the warden database and config",
		Long:  `Initialize the warden database at ~/.warden/warden.db with the required schema and write a default config file if none exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := db.GetDBPath()
			if err != nil {
				return fmt.Errorf("failed to get database path: %w", err)
			}

			fmt.Printf("Initializing warden database at %s\n", dbPath)

			if _, err := db.GetDB(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			fmt.Println("✓ Database initialized successfully")

			cfgPath, err := config.Path()
			if err != nil {
				return fmt.Errorf("failed to get config path: %w", err)
			}
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.Save(cfgPath, config.Default()); err != nil {
					return fmt.Errorf("failed to write default config: %w", err)
				}
				fmt.Printf("✓ Default config written to %s\n", cfgPath)
			} else {
				fmt.Printf("✓ Config already present at %s\n", cfgPath)
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  warden policy add --org org-001 --action log_message --max-risk LOW --decision APPROVED")
			fmt.Println("  warden serve")
			return nil
		},
	}
}
