package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort string
	GRPCPort string

	MQTTEnabled    bool
	RabbitHost     string
	RabbitPort     int
	RabbitUser     string
	RabbitPassword string

	SensorTopics         []string
	CommandTopicTemplate string
	DeviceID             string
	DedupTTL             time.Duration

	AnalyzerURL       string
	AnalyzerTimeoutMs int
	AnalyzerRetries   int
	CBFails           int
	CBOpenMs          int
	CBIntervalMs      int

	MaxImageBytes int64
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}
func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return d
}

// splitList reads a comma separated env value, blanks dropped.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadConfig() Config {
	return Config{
		HTTPPort: getenv("HTTP_PORT", "5000"),
		GRPCPort: getenv("GRPC_PORT", "50051"),

		MQTTEnabled:    getenvBool("MQTT_ENABLED", true),
		RabbitHost:     getenv("RABBITMQ_HOST", "localhost"),
		RabbitPort:     getenvInt("RABBITMQ_PORT", 1883),
		RabbitUser:     getenv("RABBITMQ_USER", "guest"),
		RabbitPassword: getenv("RABBITMQ_PASSWORD", "guest"),

		SensorTopics:         splitList(getenv("SENSOR_SUB_TOPIC", "sensor/data/#")),
		CommandTopicTemplate: getenv("SPRAY_COMMAND_TOPIC_TEMPLATE", "event/SprayCommand/{device}"),
		DeviceID:             getenv("DEVICE_ID", "sprayer-1"),
		DedupTTL:             time.Duration(getenvInt("DEDUP_TTL_MS", 30000)) * time.Millisecond,

		AnalyzerURL:       getenv("ANALYZER_URL", ""),
		AnalyzerTimeoutMs: getenvInt("ANALYZER_TIMEOUT_MS", 10000),
		AnalyzerRetries:   getenvInt("ANALYZER_RETRIES", 2),
		CBFails:           getenvInt("CB_FAILS", 3),
		CBOpenMs:          getenvInt("CB_OPEN_MS", 15000),
		CBIntervalMs:      getenvInt("CB_INTERVAL_MS", 60000),

		MaxImageBytes: int64(getenvInt("MAX_IMAGE_BYTES", 16<<20)),
	}
}
