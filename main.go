package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hubbridge/internal/bridge"
	"hubbridge/internal/cloud"
	"hubbridge/internal/compiler"
	"hubbridge/internal/config"
	"hubbridge/internal/discovery"
	"hubbridge/internal/events"
	"hubbridge/internal/hub"
	"hubbridge/internal/models"
	"hubbridge/internal/registry"
	"hubbridge/internal/runtime"
	"hubbridge/internal/store"
	"hubbridge/internal/taskqueue"
	"hubbridge/internal/transport"
	"hubbridge/internal/web"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone %q: %v", cfg.Timezone, err)
	}

	ctx := context.Background()

	documentStore, err := store.New(ctx, cfg.DBURL)
	if err != nil {
		log.Fatalf("Failed to connect to document store: %v", err)
	}
	defer documentStore.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	// Identity bootstrap. Without it the hub must not serve.
	authenticator := cloud.NewAuthenticator(cfg.AuthURL, cfg.KeysPath)
	identity, err := authenticator.SignIn(ctx)
	if err != nil {
		log.Fatalf("Failed to authenticate hub: %v", err)
	}
	log.Printf("Authenticated as hub %s", identity.HubID)

	router := events.NewRouter()

	transportClient, err := transport.NewClient(transport.Options{
		Broker:       cfg.MQTTBroker,
		ClientID:     cfg.MQTTClientID,
		Username:     cfg.MQTTUser,
		Password:     cfg.MQTTPassword,
		EventTopic:   cfg.EventTopic,
		ZigbeeTopic:  cfg.ZigbeeTopic,
		CommandTopic: cfg.CommandTopic,
	}, router)
	if err != nil {
		log.Fatalf("Failed to connect to MQTT: %v", err)
	}

	runtimeClient, err := runtime.NewClient(cfg.RuntimeURL, cfg.RuntimeToken)
	if err != nil {
		log.Fatalf("Failed to create runtime client: %v", err)
	}
	// Reachability probe. The hub must not accept configuration it cannot
	// apply, so an unreachable runtime is fatal at startup.
	states, err := runtimeClient.GetStates(ctx)
	if err != nil {
		log.Fatalf("Failed to reach runtime control API: %v", err)
	}
	log.Printf("Runtime reachable, %d entities known", len(states))

	applier := runtime.NewApplier(runtimeClient, cfg.GroupsPath, cfg.AutomationsPath, cfg.DryRun)

	comp, err := compiler.New(registry.New(cfg.RegistryPath), cfg.SleepTime, loc)
	if err != nil {
		log.Fatalf("Failed to create compiler: %v", err)
	}

	h := hub.New(comp, applier)

	// Initial document fetch populates the hub without reapplying rules.
	props, err := documentStore.GetHub(ctx, identity.HubID)
	if err != nil {
		log.Fatalf("Failed to fetch hub document: %v", err)
	}
	h.Seed(*props)

	taskqueue.SetGlobalInstances(documentStore)
	go taskqueue.StartWorkers(cfg.RedisAddr)

	// Cloud forwarding of local events.
	cloud.NewForwarder(h, redisClient).Register(router)

	// Inbound commands from the cloud.
	rollback := hub.RollbackFunc(func(ctx context.Context, restored models.DevicesProps) error {
		return documentStore.SetDevicesProps(ctx, h.ID(), restored)
	})
	router.PropsChange.Subscribe(func(ctx context.Context, props models.HubProps) error {
		return h.SetProps(ctx, props, rollback)
	})
	router.SetState.Subscribe(func(_ context.Context, cmd models.SetStateCommand) error {
		return transportClient.SetState(cmd.DeviceID, cmd.State)
	})
	router.DeviceAdded.Subscribe(func(_ context.Context, action models.Action) error {
		// Provisioning restarts the zigbee pairing window on the runtime
		// side; nothing to do locally beyond acknowledging the action.
		log.Printf("Device provisioning requested: %s", action.Payload)
		return nil
	})

	dispatcher := cloud.NewActionDispatcher(documentStore, h, router)
	if err := dispatcher.Start(cfg.ActionsPollSpec); err != nil {
		log.Fatalf("Failed to start actions poller: %v", err)
	}

	webServer := web.NewWebServer(h, transportClient, documentStore)
	go func() {
		if err := webServer.Start(fmt.Sprintf(":%d", cfg.HTTPPort)); err != nil {
			log.Fatalf("Control surface stopped: %v", err)
		}
	}()

	if cfg.MDNSLocalName != "" {
		go discovery.Announce(cfg.MDNSLocalName)
	}

	if cfg.BridgeEnabled {
		go bridge.Start(bridge.Config{
			RelayWS:  cfg.BridgeRelayWS,
			LocalURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTPPort),
			HubID:    identity.HubID,
		})
	} else {
		log.Println("Remote access bridge is disabled")
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	dispatcher.Stop()
	transportClient.Close()
	taskqueue.StopWorkers()
	log.Println("Shutdown complete")
}
