package cli

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mockup/pkg/artifact"
	"github.com/matzehuels/mockup/pkg/catalog"
	"github.com/matzehuels/mockup/pkg/composite"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/fetch"
	"github.com/matzehuels/mockup/pkg/httputil"
	"github.com/matzehuels/mockup/pkg/placement"
)

// compositeOpts holds the command-line flags for the composite command.
type compositeOpts struct {
	base     string // base image file
	category string // placement category; defaults to the base file name
	output   string // output file
	quality  int    // JPEG quality
}

// compositeCommand creates the composite command for a single one-off
// composite, useful to check a placement rule against a new base photo.
func (c *CLI) compositeCommand() *cobra.Command {
	opts := compositeOpts{quality: artifact.DefaultJPEGQuality}

	cmd := &cobra.Command{
		Use:   "composite <overlay>",
		Short: "Composite a design onto a single base image",
		Long: `Composite places the overlay (file path or http(s) URL) onto one base image
using the placement rule of the category and writes the result.

The category defaults to the base file name, so bases named after their
category need no --category flag. The output format follows the output
file extension (.png or .jpg).

Examples:
  mockup composite design.png --base bases/CAMISA_SPORT.png
  mockup composite https://cdn.example/d/42.png --base photo.jpg --category baby_long -o out.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := runComposite(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			printSuccess("Composite written")
			printFile(path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.base, "base", "b", "", "base image file (required)")
	cmd.Flags().StringVar(&opts.category, "category", "", "placement category (default: base file name)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: {CATEGORY}_resultado.png)")
	cmd.Flags().IntVar(&opts.quality, "quality", opts.quality, "JPEG quality (1-100)")
	_ = cmd.MarkFlagRequired("base")

	return cmd
}

// runComposite composites overlay onto opts.base and returns the output
// path. opts.category is filled in from the base file name when empty.
func runComposite(ctx context.Context, overlay string, opts compositeOpts) (string, error) {
	logger := loggerFromContext(ctx)
	if opts.category == "" {
		opts.category = catalog.CategoryFromFilename(opts.base)
	}

	rule, err := placement.Default().Lookup(opts.category)
	if err != nil {
		return "", err
	}

	base, err := decodeFile(opts.base)
	if err != nil {
		return "", err
	}

	data, err := fetch.New(fetch.WithHTTPClient(httputil.NewClient(httputil.DefaultTimeout))).Fetch(ctx, overlay)
	if err != nil {
		return "", err
	}
	img, format, err := composite.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	logger.Debug("overlay decoded", "format", format, "bounds", img.Bounds(), "alpha", composite.CarriesAlpha(img))

	out, err := composite.Composite(base, img, rule)
	if err != nil {
		return "", err
	}

	path := opts.output
	if path == "" {
		path = artifact.CompositeResult{Category: rule.Category}.Filename(artifact.FormatPNG)
	}
	outFormat := artifact.NormalizeFormat(filepath.Ext(path))
	if err := writeImage(path, out, outFormat, opts.quality); err != nil {
		return "", err
	}
	logger.Debug("composite written", "path", path, "rule", rule)
	return path, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrCodeNotFound, err, "base image %s", path)
		}
		return nil, errs.Wrap(errs.ErrCodeIO, err, "open base image %s", path)
	}
	defer f.Close()
	img, _, err := composite.Decode(bufio.NewReader(f))
	return img, err
}

func writeImage(path string, img image.Image, format string, quality int) error {
	if format != artifact.FormatPNG && format != artifact.FormatJPEG {
		return errs.New(errs.ErrCodeValidation, "unsupported output extension %q (use .png or .jpg)", strings.TrimPrefix(filepath.Ext(path), "."))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.ErrCodeIO, err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrCodeIO, err, "create %s", path)
	}
	w := bufio.NewWriter(f)
	if err := artifact.Encode(w, img, format, quality); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errs.Wrap(errs.ErrCodeIO, err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrCodeIO, err, "close %s", path)
	}
	return nil
}
