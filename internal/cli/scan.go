package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mockup/internal/config"
	"github.com/matzehuels/mockup/pkg/artifact"
	"github.com/matzehuels/mockup/pkg/pipeline"
	"github.com/matzehuels/mockup/pkg/publish"
	"github.com/matzehuels/mockup/pkg/source/dir"
)

// scanOpts holds the command-line flags for the scan command.
type scanOpts struct {
	base    string // base image directory
	results string // results directory
	format  string // output format: png (default) or jpg
}

// scanCommand creates the scan command: the offline batch mode. Every
// base image in the directory is paired with one overlay and the results
// are kept on disk.
func (c *CLI) scanCommand() *cobra.Command {
	opts := scanOpts{format: artifact.FormatPNG}

	cmd := &cobra.Command{
		Use:   "scan <overlay>",
		Short: "Composite one design onto every base image in a directory",
		Long: `Scan treats every image file in the base directory as a category (file name
without extension, uppercased) and composites the overlay onto each one.
Results are written to the results directory as {CATEGORY}_resultado.png
and are not delivered anywhere.

Categories without a placement rule, or whose rule does not fit the base
image, are logged and skipped.

Examples:
  mockup scan design.png
  mockup scan design.png --base ./bases --results ./out --format jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(&cfg, args[0])
			if err := cfg.Validate(); err != nil {
				return err
			}
			_, err = runScan(cmd.Context(), cfg)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.base, "base", "", "base image directory")
	cmd.Flags().StringVarP(&opts.results, "results", "o", "", "results directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: png, jpg")

	return cmd
}

func (o *scanOpts) apply(cfg *config.Config, overlay string) {
	cfg.Source.Kind = config.SourceDir
	cfg.Source.Dir.Overlay = overlay
	cfg.Results.Keep = true
	cfg.Results.Format = o.format
	if o.base != "" {
		cfg.Catalog.Dir = o.base
	}
	if o.results != "" {
		cfg.Results.Dir = o.results
	}
}

func runScan(ctx context.Context, cfg config.Config) (pipeline.Summary, error) {
	logger := loggerFromContext(ctx)
	installDebugHooks(logger)

	st, err := buildStack(ctx, cfg, publish.Discard{}, nil)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer st.Close(ctx)

	src, err := dir.New(cfg.Catalog.Dir, cfg.Source.Dir.Overlay, logger)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer src.Close()

	p := newProgress(logger)
	sum, err := pipeline.Loop(ctx, src, st.runner)
	if err != nil {
		return sum, err
	}
	p.done(fmt.Sprintf("Composited %d of %d categories", sum.Delivered, src.Len()))

	printSummary(sum)
	printResults(cfg.Results.Dir)
	return sum, ctx.Err()
}

// printResults lists the artifacts in the results directory.
func printResults(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		printFile(filepath.Join(root, n))
	}
}
