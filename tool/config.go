package tool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aosaki/dlnacast/types"
)

var (
	ConfigPath    = "config.yaml" // be aware that it can be changed, default to ./config.yaml
	CurrentConfig types.AppConfig
)

func defaultConfig() types.AppConfig {
	return types.AppConfig{
		Server: types.ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Streaming: types.StreamingConfig{
			Port:       8080,
			MP3Bitrate: "128k",
		},
		Timeouts: types.TimeoutConfig{
			HTTPRequest:     10,
			StreamDetection: 5,
			DeviceDiscovery: 10,
			FFmpegStartup:   10,
		},
		FFmpeg: types.FFmpegConfig{
			ChunkSize:         8192,
			MaxStderrLines:    1000,
			ProtocolWhitelist: "http,https,tcp,tls",
		},
		Cache: types.CacheConfig{
			DataDir:   "data",
			StreamTTL: 86400,
		},
		Security: types.SecurityConfig{
			RateLimitRPS: 10,
		},
		Performance: types.PerformanceConfig{
			PoolMaxIdle:    50,
			PoolMaxPerHost: 10,
		},
	}
}

// LoadConfig reads the YAML config at path, creating it with defaults when it
// does not exist. Missing keys keep their default values.
func LoadConfig(path string) (types.AppConfig, error) {
	if path == "" {
		path = ConfigPath
	}
	ConfigPath = path

	cfg := defaultConfig()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := writeDefaultConfig(path, cfg); writeErr != nil {
				return cfg, fmt.Errorf("config file not found, and failed to generate default config: %v", writeErr)
			}
			DefaultLogger.Infof("Created new config file at %s", path)
			CurrentConfig = cfg
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config file path is a directory: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %v", err)
	}

	CurrentConfig = cfg
	return cfg, nil
}

func writeDefaultConfig(path string, cfg types.AppConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func GetCurrentConfig() *types.AppConfig {
	return &CurrentConfig
}
