package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/tabular"
)

func newTemplateCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "template <student|teacher>",
		Short: "Write the import template workbook of a module",
		Example: `  importctl template student --out ./templates
  importctl template teachers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := domain.ParseEntityType(args[0])
			if err != nil {
				return err
			}
			content, err := tabular.NewTemplateWriter().Template(cmd.Context(), domain.SchemaFor(entity))
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			path := filepath.Join(outDir, fmt.Sprintf("%s_import_template.xlsx", entity))
			if err := os.WriteFile(path, content, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			cmd.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write the template into")
	return cmd
}
