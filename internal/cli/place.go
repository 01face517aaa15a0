package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/cartolabel/pkg/config"
	"github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/label"
	"github.com/matzehuels/cartolabel/pkg/pipeline"
)

// placeOpts holds the flags of the place command. Flags that are set
// override the configuration file.
type placeOpts struct {
	configPath string
	avoid      []string
	outputDir  string
	name       string
	formats    string

	textAttr   string
	fallback   string
	fixedText  string
	slots      string
	lineStep   string
	minScore   float64
	polygonFit string
	minOverlap float64
	offsetX    float64
	offsetY    float64
	padding    float64

	fontFamily string
	capHeight  float64
	fonts      []string

	footprints bool
	prepared   bool
	svgSize    float64
	noCache    bool
	refresh    bool
}

func (c *CLI) placeCommand() *cobra.Command {
	var opts placeOpts

	cmd := &cobra.Command{
		Use:   "place [features.geojson]",
		Short: "Place labels for a feature file",
		Long: `Place labels for every feature of a GeoJSON file and write the results.

The input is a FeatureCollection or line-delimited GeoJSON features. Avoidance
layers are FeatureCollections whose geometry labels must not touch. Settings
come from --config and are overridden by flags.`,
		Example: `  cartolabel place wells.geojson --avoid roads.geojson --text name -f json,svg
  cartolabel place -c project.toml --refresh`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				f.Source.Input = args[0]
			}
			if err := applyPlaceFlags(f, cmd.Flags(), &opts); err != nil {
				return err
			}
			if err := f.Validate(); err != nil {
				return err
			}
			return c.runPlace(cmd.Context(), f, &opts)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&opts.configPath, "config", "c", "", "configuration file (.toml, .yaml)")
	fl.StringSliceVar(&opts.avoid, "avoid", nil, "avoidance layer (repeatable)")
	fl.StringVarP(&opts.outputDir, "output", "o", "", "output directory (default: next to the input)")
	fl.StringVar(&opts.name, "name", "", "base name of written files (default: <input>.labels)")
	fl.StringVarP(&opts.formats, "format", "f", "", "output format(s): json (default), geojson, svg (comma-separated)")

	fl.StringVarP(&opts.textAttr, "text", "t", "", "attribute holding the label text")
	fl.StringVar(&opts.fallback, "text-fallback", "", "attribute used when --text is empty")
	fl.StringVar(&opts.fixedText, "fixed-text", "", "use this text for every feature")
	fl.StringVar(&opts.slots, "slots", "", "point positions in order of preference (comma-separated)")
	fl.StringVar(&opts.lineStep, "line-step", "", "distance between line candidates, absolute or percent (e.g. 10%)")
	fl.Float64Var(&opts.minScore, "min-line-score", 0, "minimum line candidate score")
	fl.StringVar(&opts.polygonFit, "polygon-fit", "", "polygon fit: inside, overlap, boundary")
	fl.Float64Var(&opts.minOverlap, "min-overlap", 0, "minimum polygon overlap for --polygon-fit overlap")
	fl.Float64Var(&opts.offsetX, "offset-x", 0, "horizontal distance between point and label")
	fl.Float64Var(&opts.offsetY, "offset-y", 0, "vertical distance between point and label")
	fl.Float64Var(&opts.padding, "padding", 0, "clearance around every label")

	fl.StringVar(&opts.fontFamily, "font", "", "font family used for measuring")
	fl.Float64Var(&opts.capHeight, "cap-height", 0, "text cap height in map units")
	fl.StringSliceVar(&opts.fonts, "font-file", nil, "register a font as family=path (repeatable)")

	fl.BoolVar(&opts.footprints, "footprints", false, "include label footprints in the outputs")
	fl.BoolVar(&opts.prepared, "prepared", false, "index polygon edges for containment tests")
	fl.Float64Var(&opts.svgSize, "svg-size", 0, "width of the SVG preview in pixels")
	fl.BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	fl.BoolVar(&opts.refresh, "refresh", false, "ignore cached results")

	return cmd
}

// loadConfig reads the configuration file, or returns an empty one.
func loadConfig(path string) (*config.File, error) {
	if path == "" {
		return &config.File{}, nil
	}
	return config.Load(path)
}

// applyPlaceFlags copies every flag the user set onto f.
func applyPlaceFlags(f *config.File, fl *pflag.FlagSet, opts *placeOpts) error {
	set := fl.Changed

	if set("avoid") {
		f.Source.Avoidance = append(f.Source.Avoidance, opts.avoid...)
	}
	if set("prepared") {
		f.Source.Prepared = opts.prepared
	}
	if set("output") {
		f.Output.Dir = opts.outputDir
	}
	if set("name") {
		f.Output.Name = opts.name
	}
	if set("format") {
		f.Output.Formats = parseList(opts.formats)
	}
	if set("footprints") {
		f.Output.Footprints = opts.footprints
	}
	if set("svg-size") {
		f.Output.SVGSize = opts.svgSize
	}

	l := &f.Label
	if set("text") {
		l.TextAttribute = opts.textAttr
	}
	if set("text-fallback") {
		l.TextAttributeFallback = opts.fallback
	}
	if set("fixed-text") {
		l.FixedText = opts.fixedText
	}
	if set("slots") {
		l.PointPositionPreference = nil
		for _, s := range parseList(opts.slots) {
			l.PointPositionPreference = append(l.PointPositionPreference, label.Slot(s))
		}
	}
	if set("line-step") {
		step, err := label.ParseStep(opts.lineStep)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "--line-step")
		}
		l.LineLabelStep = step
	}
	if set("min-line-score") {
		l.MinLineLabelScore = lo.ToPtr(opts.minScore)
	}
	if set("polygon-fit") {
		l.PolygonFit = label.PolygonFit(strings.ToLower(opts.polygonFit))
	}
	if set("min-overlap") {
		l.MinPolygonOverlap = opts.minOverlap
	}
	if set("offset-x") {
		l.OffsetX = opts.offsetX
	}
	if set("offset-y") {
		l.OffsetY = opts.offsetY
	}
	if set("padding") {
		l.Padding = opts.padding
	}

	if set("font") {
		f.Style.FontFamily = opts.fontFamily
	}
	if set("cap-height") {
		f.Style.CapHeight = opts.capHeight
	}
	fonts, err := parseFontFiles(opts.fonts)
	if err != nil {
		return err
	}
	f.Style.Fonts = append(f.Style.Fonts, fonts...)
	return nil
}

// parseFontFiles parses --font-file values of the form family=path.
func parseFontFiles(specs []string) ([]pipeline.Font, error) {
	var fonts []pipeline.Font
	for _, spec := range specs {
		family, path, ok := strings.Cut(spec, "=")
		if !ok || family == "" || path == "" {
			return nil, errors.New(errors.ErrCodeInvalidStyle, "--font-file %q must be family=path", spec)
		}
		fonts = append(fonts, pipeline.Font{Family: family, Path: path})
	}
	return fonts, nil
}

// runPlace executes the pipeline and writes one file per format.
func (c *CLI) runPlace(ctx context.Context, f *config.File, opts *placeOpts) error {
	logger := loggerFromContext(ctx)
	logger.Debug("configuration", "config", f)

	runner, err := c.newRunner(ctx, f.Cache, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := f.Options()
	popts.Refresh = opts.refresh
	popts.Logger = logger

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Placing labels...")
	spinner.Start()
	result, err := runner.Execute(ctx, popts)
	if err != nil {
		spinner.StopWithError("Placement failed")
		return err
	}
	spinner.Stop()
	stats := result.Document.Stats
	prog.done(fmt.Sprintf("Placed %d of %d labels", stats.Placed, stats.Features))

	dir := f.Output.Dir
	if dir == "" {
		dir = filepath.Dir(f.Source.Input)
	}
	paths, err := writeArtifacts(dir, outputName(f.Output.Name, f.Source.Input), result.Artifacts)
	if err != nil {
		return err
	}

	printSuccess("Placed %s labels", StyleNumber.Render(fmt.Sprint(stats.Placed)))
	printStats(stats, result.CacheInfo.LabelsHit)
	for _, p := range paths {
		printFile(p)
	}
	if stats.SkippedTotal() > 0 && slices.Contains(popts.Formats, pipeline.FormatJSON) {
		printNewline()
		printNextStep("Review skipped features", appName+" inspect "+paths[0])
	}
	return nil
}

// writeArtifacts writes each artifact to dir/name.format, JSON first.
func writeArtifacts(dir, name string, artifacts map[string][]byte) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", dir)
	}
	formats := make([]string, 0, len(artifacts))
	for format := range artifacts {
		formats = append(formats, format)
	}
	slices.SortFunc(formats, func(a, b string) int {
		return formatRank(a) - formatRank(b)
	})

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		path := filepath.Join(dir, name+"."+format)
		if err := os.WriteFile(path, artifacts[format], 0o644); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func formatRank(format string) int {
	switch format {
	case pipeline.FormatJSON:
		return 0
	case pipeline.FormatGeoJSON:
		return 1
	}
	return 2
}
