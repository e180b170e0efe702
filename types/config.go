package types

// AppConfig is the YAML configuration file layout.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Radio       RadioConfig       `yaml:"radio"`
	DLNA        DLNAConfig        `yaml:"dlna"`
	Streaming   StreamingConfig   `yaml:"streaming"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
	Cache       CacheConfig       `yaml:"cache"`
	Security    SecurityConfig    `yaml:"security"`
	Performance PerformanceConfig `yaml:"performance"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RadioConfig struct {
	DefaultURL string `yaml:"default_url"`
}

type DLNAConfig struct {
	DefaultDeviceIP string `yaml:"default_device_ip"`
}

type StreamingConfig struct {
	Port       int    `yaml:"port"`
	MP3Bitrate string `yaml:"mp3_bitrate"`
	// PublicURL overrides local IP auto-detection when the transcoded stream
	// must be reachable through NAT or a reverse proxy, e.g. "http://10.0.0.5:8080".
	PublicURL string `yaml:"public_url"`
}

// All timeout values are seconds.
type TimeoutConfig struct {
	HTTPRequest     int `yaml:"http_request"`
	StreamDetection int `yaml:"stream_detection"`
	DeviceDiscovery int `yaml:"device_discovery"`
	FFmpegStartup   int `yaml:"ffmpeg_startup"`
}

type FFmpegConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	MaxStderrLines    int    `yaml:"max_stderr_lines"`
	ProtocolWhitelist string `yaml:"protocol_whitelist"`
}

type CacheConfig struct {
	DataDir   string `yaml:"data_dir"`
	StreamTTL int    `yaml:"stream_ttl"` // seconds
}

type SecurityConfig struct {
	APIAuthEnabled   bool   `yaml:"api_auth_enabled"`
	APIKey           string `yaml:"api_key"`
	RateLimitEnabled bool   `yaml:"rate_limit_enabled"`
	RateLimitRPS     int    `yaml:"rate_limit_rps"`
}

type PerformanceConfig struct {
	PoolMaxIdle    int `yaml:"pool_max_idle"`
	PoolMaxPerHost int `yaml:"pool_max_per_host"`
}

// FlagConfig holds runtime overrides from CLI flags.
type FlagConfig struct {
	Log           string
	UseConfigPath string
	UseDataDir    string
	UseStreamPort int
	UseDeviceIP   string
	UseStreamURL  string
}
