package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Cesium  CesiumConfig  `yaml:"cesium" mapstructure:"cesium"`
	Imagery ImageryConfig `yaml:"imagery" mapstructure:"imagery"`
	Publish PublishConfig `yaml:"publish" mapstructure:"publish"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ExportConfig controls sampling and artifact output.
type ExportConfig struct {
	Stride  int    `yaml:"stride" mapstructure:"stride"`
	Output  string `yaml:"output" mapstructure:"output"`
	GeoJSON string `yaml:"geojson" mapstructure:"geojson"`
	Title   string `yaml:"title" mapstructure:"title"`
}

// CesiumConfig holds the viewer library location and the optional access
// token. An empty token selects the supported (credential-free) mode.
type CesiumConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	Version string `yaml:"version" mapstructure:"version"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ImageryConfig holds provider endpoints.
type ImageryConfig struct {
	OSMURL          string `yaml:"osm_url" mapstructure:"osm_url"`
	OSMCredit       string `yaml:"osm_credit" mapstructure:"osm_credit"`
	IonImageryAsset int    `yaml:"ion_imagery_asset" mapstructure:"ion_imagery_asset"`
	IonTerrainAsset int    `yaml:"ion_terrain_asset" mapstructure:"ion_terrain_asset"`
}

// PublishConfig configures the local publisher.
type PublishConfig struct {
	Enabled        bool    `yaml:"enabled" mapstructure:"enabled"`
	Port           int     `yaml:"port" mapstructure:"port"`
	PortScan       int     `yaml:"port_scan" mapstructure:"port_scan"`
	OpenBrowser    bool    `yaml:"open_browser" mapstructure:"open_browser"`
	ReadyTimeoutMS int     `yaml:"ready_timeout_ms" mapstructure:"ready_timeout_ms"`
	TileProxy      bool    `yaml:"tile_proxy" mapstructure:"tile_proxy"`
	TileCacheSize  int     `yaml:"tile_cache_size" mapstructure:"tile_cache_size"`
	TileRPS        float64 `yaml:"tile_rps" mapstructure:"tile_rps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FLIGHTGLOBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("export.stride", 5)
	v.SetDefault("export.output", "uav_3d_globe.html")
	v.SetDefault("export.geojson", "")
	v.SetDefault("export.title", "UAV 3D Globe (Cesium)")
	v.SetDefault("cesium.token", "")
	v.SetDefault("cesium.version", "1.121")
	v.SetDefault("cesium.base_url", "https://unpkg.com/cesium")
	v.SetDefault("imagery.osm_url", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("imagery.osm_credit", "© OpenStreetMap contributors")
	v.SetDefault("imagery.ion_imagery_asset", 2)
	v.SetDefault("imagery.ion_terrain_asset", 1)
	v.SetDefault("publish.enabled", true)
	v.SetDefault("publish.port", 8000)
	v.SetDefault("publish.port_scan", 10)
	v.SetDefault("publish.open_browser", true)
	v.SetDefault("publish.ready_timeout_ms", 1000)
	v.SetDefault("publish.tile_proxy", false)
	v.SetDefault("publish.tile_cache_size", 2048)
	v.SetDefault("publish.tile_rps", 2.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

// Validate checks the settings an export relies on and reports every
// problem at once. Stride is left to trajectory.Sample, which reports it
// as an invalid argument.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Export.Output) == "" {
		problems = append(problems, "export.output is required")
	}
	if c.Publish.Port < 0 || c.Publish.Port > 65535 {
		problems = append(problems, "publish.port must be between 0 and 65535")
	}
	if c.Publish.PortScan < 1 {
		problems = append(problems, "publish.port_scan must be >= 1")
	}
	if c.Publish.TileCacheSize < 0 {
		problems = append(problems, "publish.tile_cache_size must be >= 0")
	}
	if c.Publish.TileRPS < 0 {
		problems = append(problems, "publish.tile_rps must be >= 0")
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
