package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/natural-conversion/internal/codebook"
	"github.com/sells-group/natural-conversion/internal/ledger"
	"github.com/sells-group/natural-conversion/internal/resilience"
	"github.com/sells-group/natural-conversion/internal/tiles"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig         `yaml:"log" mapstructure:"log"`
	Grid     GridConfig        `yaml:"grid" mapstructure:"grid"`
	Tiles    TilesConfig       `yaml:"tiles" mapstructure:"tiles"`
	Inputs   InputsConfig      `yaml:"inputs" mapstructure:"inputs"`
	Output   OutputConfig      `yaml:"output" mapstructure:"output"`
	Codebook CodebookConfig    `yaml:"codebook" mapstructure:"codebook"`
	Workers  int               `yaml:"workers" mapstructure:"workers"`
	Retry    resilience.Policy `yaml:"retry" mapstructure:"retry"`
	Ledger   ledger.Config     `yaml:"ledger" mapstructure:"ledger"`
	Metrics  MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GridConfig sets the spatial block size used to split a tile for the
// worker pool.
type GridConfig struct {
	BlockWidth  int `yaml:"block_width" mapstructure:"block_width"`
	BlockHeight int `yaml:"block_height" mapstructure:"block_height"`
}

// TilesConfig describes the tile job array.
type TilesConfig struct {
	Years  []int `yaml:"years" mapstructure:"years"`
	Width  int   `yaml:"width" mapstructure:"width"`
	Height int   `yaml:"height" mapstructure:"height"`
	MinX   int   `yaml:"min_x" mapstructure:"min_x"`
	MaxX   int   `yaml:"max_x" mapstructure:"max_x"`
	MinY   int   `yaml:"min_y" mapstructure:"min_y"`
	MaxY   int   `yaml:"max_y" mapstructure:"max_y"`
}

// Planner converts the tile settings into a planner.
func (t TilesConfig) Planner() tiles.Planner {
	return tiles.Planner{
		Years:      t.Years,
		TileWidth:  t.Width,
		TileHeight: t.Height,
		MinX:       t.MinX,
		MaxX:       t.MaxX,
		MinY:       t.MinY,
		MaxY:       t.MaxY,
	}
}

// InputsConfig locates input grids. File names are templates expanded with
// {year}, {initial} and {final}, plus {x} and {y} (tile corner, e.g. "10W",
// "20N") for pre-tiled inputs.
type InputsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	InitialYear int    `yaml:"initial_year" mapstructure:"initial_year"`
	FinalYear   int    `yaml:"final_year" mapstructure:"final_year"`
	Cover       string `yaml:"cover" mapstructure:"cover"`
	Crops       string `yaml:"crops" mapstructure:"crops"`
	// Transition, when set, names a precomputed transition-code grid used
	// instead of the final-year cover grid.
	Transition string `yaml:"transition" mapstructure:"transition"`
}

// OutputConfig locates the artifact store.
type OutputConfig struct {
	Store             string  `yaml:"store" mapstructure:"store"`
	Prefix            string  `yaml:"prefix" mapstructure:"prefix"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// CodebookConfig locates the transition codebook and the optional cover
// recode legend.
type CodebookConfig struct {
	Transitions codebook.Source `yaml:"transitions" mapstructure:"transitions"`
	CoverRecode codebook.Source `yaml:"cover_recode" mapstructure:"cover_recode"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NATCONV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	planner := tiles.DefaultPlanner()
	matrix := codebook.DefaultMatrixLayout()
	legend := codebook.DefaultLegendLayout()
	retry := resilience.DefaultPolicy()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("grid.block_width", 1024)
	v.SetDefault("grid.block_height", 1024)
	v.SetDefault("tiles.years", planner.Years)
	v.SetDefault("tiles.width", planner.TileWidth)
	v.SetDefault("tiles.height", planner.TileHeight)
	v.SetDefault("tiles.min_x", planner.MinX)
	v.SetDefault("tiles.max_x", planner.MaxX)
	v.SetDefault("tiles.min_y", planner.MinY)
	v.SetDefault("tiles.max_y", planner.MaxY)
	v.SetDefault("inputs.dir", "data")
	v.SetDefault("inputs.initial_year", 1992)
	v.SetDefault("inputs.final_year", 2015)
	v.SetDefault("inputs.cover", "lc_{year}.ncg")
	v.SetDefault("inputs.crops", "croplands_{year}.ncg")
	v.SetDefault("inputs.transition", "")
	v.SetDefault("output.store", "out")
	v.SetDefault("output.prefix", "natural_conversion")
	v.SetDefault("output.requests_per_second", 0)
	v.SetDefault("codebook.transitions.path", "")
	v.SetDefault("codebook.transitions.kind", "")
	v.SetDefault("codebook.transitions.matrix.sheet", matrix.Sheet)
	v.SetDefault("codebook.transitions.matrix.header_column", matrix.HeaderColumn)
	v.SetDefault("codebook.transitions.matrix.first_data_column", matrix.FirstDataColumn)
	v.SetDefault("codebook.transitions.matrix.last_data_column", matrix.LastDataColumn)
	v.SetDefault("codebook.transitions.matrix.first_data_row", matrix.FirstDataRow)
	v.SetDefault("codebook.transitions.matrix.last_data_row", matrix.LastDataRow)
	v.SetDefault("codebook.cover_recode.path", "")
	v.SetDefault("codebook.cover_recode.kind", string(codebook.KindLegend))
	v.SetDefault("codebook.cover_recode.legend.sheet", legend.Sheet)
	v.SetDefault("codebook.cover_recode.legend.from_column", legend.FromColumn)
	v.SetDefault("codebook.cover_recode.legend.to_column", legend.ToColumn)
	v.SetDefault("codebook.cover_recode.legend.first_data_row", legend.FirstDataRow)
	v.SetDefault("codebook.cover_recode.legend.last_data_row", legend.LastDataRow)
	v.SetDefault("workers", 0)
	v.SetDefault("retry.attempts", retry.Attempts)
	v.SetDefault("retry.backoff", retry.Backoff)
	v.SetDefault("retry.max_backoff", retry.MaxBackoff)
	v.SetDefault("retry.jitter", retry.Jitter)
	v.SetDefault("ledger.driver", "")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("metrics.addr", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "tile", "run" or
// "ledger".
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "tile", "run":
		need(c.Codebook.Transitions.Path != "", "codebook.transitions.path is required")
		need(c.Inputs.Dir != "", "inputs.dir is required")
		need(c.Inputs.Cover != "", "inputs.cover is required")
		need(c.Inputs.Crops != "", "inputs.crops is required")
		need(c.Inputs.InitialYear > 0, "inputs.initial_year must be positive")
		need(c.Grid.BlockWidth > 0 && c.Grid.BlockHeight > 0, "grid.block_width and grid.block_height must be positive")
		if mode == "tile" {
			need(c.Output.Store != "", "output.store is required")
			if err := c.Tiles.Planner().Validate(); err != nil {
				problems = append(problems, err.Error())
			}
			for _, y := range c.Tiles.Years {
				need(y > c.Inputs.InitialYear, fmt.Sprintf("tiles.years: %d is not after inputs.initial_year", y))
			}
		} else {
			need(c.Inputs.FinalYear > c.Inputs.InitialYear, "inputs.final_year must be after inputs.initial_year")
		}
	case "ledger":
		need(c.Ledger.Driver != "", "ledger.driver is required")
		need(c.Ledger.Driver == "" || c.Ledger.DSN != "", "ledger.dsn is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
