package tool

import (
	"flag"

	"github.com/aosaki/dlnacast/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.FlagConfig {
	var cfg types.FlagConfig
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseDataDir, "useDataDir", "", "override data directory for state and cache files")
	flag.IntVar(&cfg.UseStreamPort, "useStreamPort", 0, "override transcoded stream port")
	flag.StringVar(&cfg.UseDeviceIP, "useDeviceIP", "", "override default DLNA device IP")
	flag.StringVar(&cfg.UseStreamURL, "useStreamURL", "", "override default radio stream URL")
	flag.Parse()
	return cfg
}
