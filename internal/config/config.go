package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               int
	Password           string  // empty disables authentication
	ModelPath          string  // frozen graph of the detection network
	ConfigPath         string  // network description matching ModelPath
	LabelsPath         string  // optional class id -> label table
	DetectionThreshold float64 // observations below this confidence are not reported
	InputSize          int     // square network input size in pixels
	MaxImageDimension  int     // longer image side is downscaled to this before inference
	MaxUploadMB        int64
	ProcessingWorkers  int // number of detector instances, one network each
	QueueSize          int // pending inference requests before new ones fail
	DatabasePath       string
	LogDirectory       string
	LogDebug           bool
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnvAsInt("PORT", 8080),
		Password:           getEnv("PASSWORD", ""),
		ModelPath:          getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:         getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		LabelsPath:         getEnv("LABELS_PATH", ""),
		DetectionThreshold: getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		InputSize:          getEnvAsInt("INPUT_SIZE", 300),
		MaxImageDimension:  getEnvAsInt("MAX_IMAGE_DIMENSION", 1280),
		MaxUploadMB:        getEnvAsInt64("MAX_UPLOAD_MB", 20),
		ProcessingWorkers:  getEnvAsInt("PROCESSING_WORKERS", 2),
		QueueSize:          getEnvAsInt("QUEUE_SIZE", 32),
		DatabasePath:       getEnv("DATABASE_PATH", filepath.Join(".", "data", "cycles.db")),
		LogDirectory:       getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogDebug:           getEnvAsBool("LOG_DEBUG", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
