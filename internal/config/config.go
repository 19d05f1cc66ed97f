package config

import (
	"os"
	"strconv"
)

type Config struct {
	Convert  ConvertConfig
	Tile     TileConfig
	Encoding EncodingConfig
	Storage  StorageConfig
	Trace    TraceConfig
}

type ConvertConfig struct {
	InputExt  string
	OutputExt string
}

type TileConfig struct {
	Size      string
	OutputExt string
}

type EncodingConfig struct {
	JPEGQuality int
}

// StorageConfig carries object store credentials for s3:// input and output
// locations. The bucket always comes from the location itself.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Convert: ConvertConfig{
			InputExt:  env("IMGPROC_INPUT_EXT", ".bmp"),
			OutputExt: env("IMGPROC_OUTPUT_EXT", ".png"),
		},
		Tile: TileConfig{
			Size:      env("IMGPROC_TILE_SIZE", "145,145"),
			OutputExt: env("IMGPROC_TILE_OUTPUT_EXT", ".png"),
		},
		Encoding: EncodingConfig{
			JPEGQuality: envInt("IMGPROC_JPEG_QUALITY", 80),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Trace: TraceConfig{
			Exporter:     env("IMGPROC_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("IMGPROC_OTLP_ENDPOINT", "localhost:4318"),
			OTLPInsecure: envBool("IMGPROC_OTLP_INSECURE", true),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
