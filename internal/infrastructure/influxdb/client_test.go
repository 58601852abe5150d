package influxdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/taskledger/internal/infrastructure/config"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig(batchSize, flushInterval int) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "taskledger-dev-token",
		Org:           "taskledger",
		Bucket:        "auth",
		BatchSize:     batchSize,
		FlushInterval: flushInterval,
	}
}

// connectOrSkip connects to the local server or skips the test.
func connectOrSkip(t *testing.T) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Connect(ctx, testConfig(10, 1))
	if err != nil {
		t.Skipf("InfluxDB not available, skipping: %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig(10, 1)
	cfg.Enabled = false

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig(10, 1)
	cfg.URL = "http://127.0.0.1:59999"

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestLiveWrites(t *testing.T) {
	client := connectOrSkip(t)

	writeErrs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case writeErrs <- err:
		default:
		}
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	client.WriteAuthAttempt("login", "success")
	client.WritePasswordHash("bcrypt", 80*time.Millisecond)
	client.Flush()

	select {
	case err := <-writeErrs:
		t.Errorf("async write error = %v", err)
	default:
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
