//go:build integration

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisPushSink_Enqueues(t *testing.T) {
	ctx := context.Background()

	tc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("cannot start container: %v", err)
	}
	t.Cleanup(func() { _ = tc.Terminate(ctx) })

	host, _ := tc.Host(ctx)
	port, _ := tc.MappedPort(ctx, "6379/tcp")

	rdb, err := NewRedisClient(ctx, RedisConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	sink := NewRedisPushSink(rdb, "")
	if err := sink.Send(ctx, testNotification()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	res, err := rdb.BRPop(ctx, time.Second, DefaultPushQueueKey).Result()
	if err != nil {
		t.Fatalf("BRPop: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("unexpected BRPop result %v", res)
	}

	var p PushPayload
	if err := json.Unmarshal([]byte(res[1]), &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.To != "device-abc" || p.Data.ReportID != "report_1" {
		t.Errorf("unexpected payload %+v", p)
	}
}
