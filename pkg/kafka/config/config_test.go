package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "broker-1:9092, broker-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "broker-2:9092" {
		t.Errorf("brokers = %v", cfg.Brokers)
	}
	if cfg.ConsumerStartOffset != DefaultConsumerStartOffset {
		t.Errorf("start offset = %d", cfg.ConsumerStartOffset)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaConsumerHeartbeatInterval, "30s")
	t.Setenv(EnvKafkaConsumerStartOffset, "5")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"ProducerCompression", "ConsumerHeartbeatInterval", "ConsumerStartOffset"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s:\n%s", want, err)
		}
	}
}
