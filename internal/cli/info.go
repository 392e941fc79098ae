package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mockup/pkg/buildinfo"
	"github.com/matzehuels/mockup/pkg/catalog"
	"github.com/matzehuels/mockup/pkg/placement"
)

// categoryRow is one line of the categories listing.
type categoryRow struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Size     string `json:"size"`
	Offset   string `json:"offset"`
	Base     string `json:"base,omitempty"`
}

// categoriesCommand lists the placement rules and whether a base image
// exists for each.
func (c *CLI) categoriesCommand() *cobra.Command {
	var (
		base   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List garment categories and their placement rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if base != "" {
				cfg.Catalog.Dir = base
			}

			logger := loggerFromContext(cmd.Context())
			cat, err := catalog.Scan(cfg.Catalog.Dir, logger)
			if err != nil {
				logger.Warn("base images unavailable", "dir", cfg.Catalog.Dir, "err", err)
				cat = catalog.New(nil)
			}

			rows := categoryRows(placement.Default(), cat)
			if asJSON {
				return writeJSON(os.Stdout, rows)
			}
			printCategories(rows, cfg.Catalog.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "base image directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func categoryRows(reg *placement.Registry, cat *catalog.Catalog) []categoryRow {
	var rows []categoryRow
	for _, name := range reg.Categories() {
		rule, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		row := categoryRow{
			Category: rule.Category,
			Label:    rule.Label,
			Size:     fmt.Sprintf("%dx%d", rule.Width, rule.Height),
			Offset:   fmt.Sprintf("%d,%d", rule.X, rule.Y),
		}
		if path, ok := cat.Path(rule.Category); ok {
			row.Base = path
		} else if _, err := cat.Lookup(rule.Category); err == nil {
			row.Base = "(in memory)"
		}
		rows = append(rows, row)
	}
	return rows
}

func printCategories(rows []categoryRow, baseDir string) {
	printInfo("%s placement rules", StyleNumber.Render(fmt.Sprint(len(rows))))
	missing := 0
	for _, r := range rows {
		status := StyleSuccess.Render(iconSuccess)
		if r.Base == "" {
			status = StyleWarning.Render(iconWarning)
			missing++
		}
		printKeyValue(r.Category, fmt.Sprintf("%s  %s @ %s  %s", status, r.Size, r.Offset, StyleDim.Render(r.Label)))
	}
	if missing > 0 {
		printNewline()
		printWarning("%d categories have no base image in %s", missing, baseDir)
	}
}

// configCommand prints the effective configuration with secrets redacted.
func (c *CLI) configCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the config file and environment
overrides have been applied. Secrets are redacted.

With --check the configuration is also validated for the run command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Redacted().Write(os.Stdout); err != nil {
				return err
			}
			if !check {
				return nil
			}
			printNewline()
			if err := cfg.Validate(); err != nil {
				printError("%v", err)
				return err
			}
			printSuccess("Configuration is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "validate the configuration")

	return cmd
}

// versionCommand prints build information.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildinfo.String())
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
