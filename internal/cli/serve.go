package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/cartolabel/pkg/config"
	"github.com/matzehuels/cartolabel/pkg/label/metrics"
	"github.com/matzehuels/cartolabel/pkg/server"
)

const defaultAddr = ":8080"

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		configPath string
		redisURL   string
		timeout    time.Duration
		maxBody    int64
		fonts      []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the label placement HTTP service",
		Long: `Run the label placement HTTP service.

POST /v1/labels places labels for a GeoJSON FeatureCollection in the request
body. The cache section of --config selects where results are cached; --redis
overrides it.`,
		Example: `  cartolabel serve --addr :8080 --redis redis://localhost:6379/0`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			f, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if redisURL != "" {
				f.Cache.Backend = config.CacheRedis
				f.Cache.RedisURL = redisURL
			}
			if err := f.Validate(); err != nil {
				return err
			}

			extra, err := parseFontFiles(fonts)
			if err != nil {
				return err
			}
			measurer := metrics.NewFontMeasurer(logger)
			for _, font := range append(f.Style.Fonts, extra...) {
				if err := measurer.RegisterFontFile(font.Family, font.Path, font.Bold, font.Italic); err != nil {
					return err
				}
			}

			runner, err := c.newRunner(ctx, f.Cache, false)
			if err != nil {
				return err
			}
			defer runner.Close()

			printKeyValue("Listening", addr)
			printKeyValue("Cache", cacheLabel(f.Cache.Backend))
			srv := server.New(runner,
				server.WithLogger(logger),
				server.WithMeasurer(measurer),
				server.WithRequestTimeout(timeout),
				server.WithMaxBodyBytes(maxBody))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (cache and fonts)")
	cmd.Flags().StringVar(&redisURL, "redis", "", "cache results in this Redis")
	cmd.Flags().DurationVar(&timeout, "timeout", server.DefaultRequestTimeout, "maximum duration of one placement")
	cmd.Flags().Int64Var(&maxBody, "max-body", server.DefaultMaxBodyBytes, "maximum request size in bytes")
	cmd.Flags().StringSliceVar(&fonts, "font-file", nil, "register a font as family=path (repeatable)")

	return cmd
}

func cacheLabel(backend string) string {
	if backend == "" {
		return "file"
	}
	return backend
}
