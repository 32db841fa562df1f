package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"slopemap/internal/config"
	"slopemap/internal/geom"
	"slopemap/internal/logging"
	"slopemap/internal/provider"
	"slopemap/internal/tui"
)

const concessionTTL = 5 * time.Minute

var (
	configPath string
	bboxFlag   string
	resolution int
	offline    bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "slopemap [geometry-file]",
	Short: "Terminal slope explorer",
	Long: `Draw a region on a terminal map, fetch its terrain slope grid and see it
classified into coloured cells alongside concession polygons and your own
GeoJSON or WKT geometry.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVarP(&bboxFlag, "bbox", "b", "", "initial region as minLon,minLat,maxLon,maxLat")
	rootCmd.Flags().IntVarP(&resolution, "resolution", "r", 0, "grid cells per side (3-100)")
	rootCmd.Flags().BoolVar(&offline, "offline", false, "use synthetic grids and skip the backend")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("resolution") {
		cfg.Provider.Resolution = resolution
	}
	if offline {
		cfg.Provider.Offline = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := tui.Options{
		Logger:     log,
		Resolution: cfg.Provider.Resolution,
		Timeout:    cfg.Provider.Timeout,
		Epsilon:    cfg.Draw.Epsilon,
		Ranges:     cfg.Ranges,
	}
	synthetic := provider.NewSynthetic()
	if cfg.Provider.Offline || cfg.Provider.BaseURL == "" {
		opts.Grid = synthetic
		log.Info("running offline", logging.String("grid", provider.SourceSynthetic))
	} else {
		client, err := provider.NewHTTPClient(cfg.Provider.BaseURL,
			provider.WithTimeout(cfg.Provider.Timeout),
			provider.WithLogger(log),
			provider.WithConcessionCache(concessionTTL))
		if err != nil {
			return err
		}
		opts.Grid = &provider.Fallback{Primary: client, Secondary: synthetic, Log: log}
		opts.Backend = client
		log.Info("backend configured", logging.String("base_url", cfg.Provider.BaseURL))
	}

	if bboxFlag != "" {
		b, err := parseInitialBBox(bboxFlag)
		if err != nil {
			return fmt.Errorf("--bbox: %w", err)
		}
		opts.InitialBBox = &b
	}
	if len(args) == 1 {
		opts.GeometryPath = args[0]
	}

	p := tea.NewProgram(tui.New(opts), tea.WithAltScreen(), tea.WithMouseAllMotion())
	if _, err := p.Run(); err != nil {
		log.Error("program exited", logging.Err(err))
		return err
	}
	return nil
}

// parseInitialBBox accepts the corners in either order and rejects regions
// without area.
func parseInitialBBox(s string) (geom.BBox, error) {
	raw, err := geom.ParseBBox(s)
	if err != nil {
		return geom.BBox{}, err
	}
	b := geom.NewBBox(raw.MinX, raw.MinY, raw.MaxX, raw.MaxY)
	if !b.Valid() {
		return geom.BBox{}, fmt.Errorf("region %s has no area", b.String())
	}
	return b, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "slopemap:", err)
		os.Exit(1)
	}
}
