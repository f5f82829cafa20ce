// cmd/bridge-debug/main.go is a standalone subscriber for
// "<prefix>/analysis", printing each pending/final payload as it
// arrives. Adapted from the teacher's mqtt-debug-subscriber.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sua-org/sentry-bridge/internal/bus"
	"github.com/sua-org/sentry-bridge/internal/core"
)

func main() {
	baseTopic := getenv("MQTT_BASE_TOPIC", "security-vision/cameras")
	topic := strings.TrimSuffix(baseTopic, "/") + "/analysis"

	mqttCli, err := bus.NewClientFromEnv("sentry-bridge-debug-subscriber")
	if err != nil {
		log.Fatalf("erro ao conectar no MQTT: %v", err)
	}
	defer mqttCli.Close()

	log.Printf("[bridge-debug] subscribed to topic: %s", topic)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if err := mqttCli.Subscribe(topic, 1, handleMessage); err != nil {
		log.Fatalf("erro ao assinar tópico %s: %v", topic, err)
	}

	go func() {
		<-sig
		log.Println("[bridge-debug] sinal recebido, encerrando subscriber...")
		cancel()
	}()

	<-ctx.Done()
	time.Sleep(500 * time.Millisecond)
}

func handleMessage(topic string, payload []byte) {
	var msg core.AnalysisPayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		log.Printf("[bridge-debug] malformed payload on %s: %v", topic, err)
		log.Printf("[bridge-debug] raw: %s", string(payload))
		return
	}

	log.Printf("[%s] event=%s risk=%s score=%d action=%s type=%s\n%s",
		msg.Camera, msg.EventID, msg.Risk, msg.RiskScore, msg.Action, msg.EventType, msg.Analysis)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
