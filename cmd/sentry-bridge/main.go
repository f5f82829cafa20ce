// cmd/sentry-bridge/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sua-org/sentry-bridge/internal/bus"
	"github.com/sua-org/sentry-bridge/internal/confirm"
	"github.com/sua-org/sentry-bridge/internal/config"
	"github.com/sua-org/sentry-bridge/internal/delivery"
	"github.com/sua-org/sentry-bridge/internal/homehub"
	"github.com/sua-org/sentry-bridge/internal/intake"
	"github.com/sua-org/sentry-bridge/internal/mediastore"
	"github.com/sua-org/sentry-bridge/internal/memory"
	"github.com/sua-org/sentry-bridge/internal/nvr"
	"github.com/sua-org/sentry-bridge/internal/pipeline"
	"github.com/sua-org/sentry-bridge/internal/policy"
	"github.com/sua-org/sentry-bridge/internal/snapshot"
	"github.com/sua-org/sentry-bridge/internal/status"
	"github.com/sua-org/sentry-bridge/internal/vision"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] aviso: não foi possível carregar .env: %v", err)
	} else {
		log.Printf("[main] .env carregado com sucesso")
	}

	configPath := getenv("SENTRY_BRIDGE_CONFIG", "config.json")
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	store, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[main] config load failed: %v", err)
	}
	cfg := store.Snapshot()

	stopWatch := make(chan struct{})
	if err := store.Watch(stopWatch); err != nil {
		log.Printf("[main] aviso: config watch não iniciado: %v", err)
	}
	defer close(stopWatch)

	mqttCli, err := bus.NewClient(bus.Config{
		Host:     cfg.MQTTHost,
		Port:     cfg.MQTTPort,
		Username: cfg.MQTTUsername,
		Password: cfg.MQTTPassword,
		ClientID: "sentry-bridge",
	})
	if err != nil {
		log.Fatalf("[main] erro ao conectar no MQTT: %v", err)
	}
	defer mqttCli.Close()

	detectionStore, err := mediastore.NewMinioStoreFromEnv()
	if err != nil {
		log.Printf("[main] aviso: MinIO não inicializado, usando staging apenas: %v", err)
	}

	staging, err := mediastore.NewStaging(cfg.StagingDir, "ai-snapshots")
	if err != nil {
		log.Fatalf("[main] staging dir init failed: %v", err)
	}

	clipStaging, err := mediastore.NewStaging(cfg.StagingDir, "ai-clips")
	if err != nil {
		log.Fatalf("[main] clip staging dir init failed: %v", err)
	}

	var detection mediastore.DetectionStore
	if detectionStore != nil {
		detection = detectionStore
	} else {
		detection = noopDetectionStore{staging: staging}
	}

	nvrClient := nvr.New(cfg.NVRBaseURL, 15*time.Second)
	snapFetcher := snapshot.New(nvrClient, detection, staging)

	visionClient := vision.New(cfg.VisionEndpoint, cfg.VisionFallbackEndpoint, cfg.VisionModel, time.Duration(cfg.VisionTimeoutSeconds)*time.Second)

	hubClient := homehub.New(cfg.HubURL, cfg.HubToken, cfg.HomeModeSensor, cfg.KnownFacesSensor,
		time.Duration(cfg.HomeStateCacheSeconds)*time.Second, 10*time.Second)
	executor := homehub.NewExecutor(hubClient, nvrClient, detection, clipStaging)

	memStore, err := memory.New(cfg.HistoryFilePath, cfg.EventHistoryMaxLines)
	if err != nil {
		log.Fatalf("[main] event memory init failed: %v", err)
	}

	policyEngine := policy.New(hubClient, memStore)

	confirmCtl := confirm.New(snapFetcher.Fetch, visionClient.Analyze)

	deliveryClient := delivery.New(cfg.AgentGatewayURL, cfg.AgentToken, cfg.AgentChannel, firstOrEmpty(cfg.AgentRecipients),
		time.Duration(cfg.DeliveryTimeoutSeconds)*time.Second)

	publisher := bus.NewPublisher(mqttCli, cfg.MQTTBaseTopic)

	in := intake.New(store.Snapshot)
	if err := in.Subscribe(mqttCli, cfg.MQTTBaseTopic); err != nil {
		log.Fatalf("[main] intake subscribe failed: %v", err)
	}

	statusPub := status.NewPublisher(mqttCli, cfg.MQTTBaseTopic, time.Duration(cfg.StatusIntervalSeconds)*time.Second,
		func() (int, uint64) {
			overflows, _ := in.Stats()
			return len(in.Events), overflows
		})

	p := &pipeline.Pipeline{
		Snapshot:   snapFetcher,
		Vision:     visionClient,
		Policy:     policyEngine,
		Confirm:    confirmCtl,
		Executor:   executor,
		Delivery:   deliveryClient,
		Memory:     memStore,
		Publisher:  publisher,
		ConfigFunc: store.Snapshot,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go statusPub.Run(ctx)
	go pipeline.RunLoop(ctx, in.Events, p)

	<-sig
	log.Println("[main] sinal recebido, encerrando...")
	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	mqttCli.Drain(drainCtx)
	drainCancel()
	time.Sleep(500 * time.Millisecond)
}

func firstOrEmpty(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// noopDetectionStore satisfies mediastore.DetectionStore when MinIO
// isn't configured: it returns the staging path as the "durable"
// reference so the pipeline still has something to put in
// AnalysisPayload.ClipURL during local development.
type noopDetectionStore struct {
	staging *mediastore.Staging
}

func (n noopDetectionStore) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	return n.staging.Write(key, data)
}
