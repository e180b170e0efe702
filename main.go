package main

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/aosaki/dlnacast/api"
	"github.com/aosaki/dlnacast/api/notifyhub"
	"github.com/aosaki/dlnacast/player"
	"github.com/aosaki/dlnacast/registry"
	"github.com/aosaki/dlnacast/streamcache"
	"github.com/aosaki/dlnacast/tool"
)

func main() {
	cfg := tool.SetFlags()
	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}

	// Flag overrides take precedence over the config file.
	if cfg.UseDataDir != "" {
		appCfg.Cache.DataDir = cfg.UseDataDir
	}
	if cfg.UseStreamPort > 0 {
		appCfg.Streaming.Port = cfg.UseStreamPort
	}
	if cfg.UseDeviceIP != "" {
		appCfg.DLNA.DefaultDeviceIP = cfg.UseDeviceIP
	}
	if cfg.UseStreamURL != "" {
		appCfg.Radio.DefaultURL = cfg.UseStreamURL
	}
	tool.CurrentConfig = appCfg

	tool.InitLogger()
	if cfg.Log == "" {
		tool.DefaultLogger.SetLevel(log.InfoLevel)
	} else {
		switch strings.ToLower(cfg.Log) {
		case "dev":
			tool.DefaultLogger.SetLevel(log.DebugLevel)
		case "prod":
			tool.DefaultLogger.SetLevel(log.InfoLevel)
		case "none":
			tool.DefaultLogger.SetLevel(log.FatalLevel)
		default:
			tool.DefaultLogger.Warnf("Unknown log mode %q, using info level", cfg.Log)
			tool.DefaultLogger.SetLevel(log.InfoLevel)
		}
	}

	tool.InitHTTPClients(appCfg.Performance.PoolMaxIdle, appCfg.Performance.PoolMaxPerHost)

	reg := registry.New(appCfg.Cache.DataDir)
	cache := streamcache.New(appCfg.Cache.DataDir, time.Duration(appCfg.Cache.StreamTTL)*time.Second)
	hub := notifyhub.New()
	orchestrator := player.New(&tool.CurrentConfig, reg, cache, hub)

	orchestrator.RunStartupTasks()

	server := api.NewServer(&tool.CurrentConfig, orchestrator, hub)
	if err := server.Start(); err != nil {
		tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
	}
}
