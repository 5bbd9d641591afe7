package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"goa.design/clue/log"

	"github.com/parcelops/resolve/agents/notifications"
	"github.com/parcelops/resolve/agents/orders"
	"github.com/parcelops/resolve/agents/payments"
	"github.com/parcelops/resolve/agents/warehouse"
	pulseevents "github.com/parcelops/resolve/features/events/pulse"
	"github.com/parcelops/resolve/features/model/anthropic"
	"github.com/parcelops/resolve/features/model/middleware"
	"github.com/parcelops/resolve/features/model/openai"
	mongostore "github.com/parcelops/resolve/features/store/mongo"
	"github.com/parcelops/resolve/runtime/card"
	"github.com/parcelops/resolve/runtime/dispatch"
	"github.com/parcelops/resolve/runtime/events"
	eventsinmem "github.com/parcelops/resolve/runtime/events/inmem"
	memoryinmem "github.com/parcelops/resolve/runtime/memory/inmem"
	"github.com/parcelops/resolve/runtime/model"
	"github.com/parcelops/resolve/runtime/store"
	storeinmem "github.com/parcelops/resolve/runtime/store/inmem"
	"github.com/parcelops/resolve/runtime/supervisor"
	"github.com/parcelops/resolve/runtime/telemetry"
)

// services bundles the wired runtime for the subcommands.
type services struct {
	directory  *card.Directory
	dispatcher *dispatch.Local
	supervisor *supervisor.Supervisor
	store      store.Store
	cleanup    func(ctx context.Context)
}

// defaultModels maps providers to the model used when --model is not given.
var defaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5",
	"openai":    "gpt-4o",
}

// buildServices wires the model client, store, event sink, specialist agents,
// and supervisor according to the flags. When requireModel is false and no
// API key is available, a stub model client is wired so metadata-only
// commands still work.
func buildServices(ctx context.Context, flags *rootFlags, requireModel bool) (*services, error) {
	logger := telemetry.NewClueLogger()
	metrics := telemetry.NewClueMetrics()
	tracer := telemetry.NewClueTracer()

	client, err := buildModelClient(flags, requireModel)
	if err != nil {
		return nil, err
	}

	var cleanups []func(ctx context.Context)
	st, cleanup, err := buildStore(ctx, flags)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		cleanups = append(cleanups, cleanup)
	}
	if flags.seedFixtures {
		if err := seedFixtures(ctx, st, flags.tenant); err != nil {
			return nil, fmt.Errorf("seed fixtures: %w", err)
		}
		log.Printf(ctx, "seeded sample orders and inventory")
	}

	sink, cleanup, err := buildEventSink(flags)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		cleanups = append(cleanups, cleanup)
	}
	publisher := events.NewPublisher(sink, logger)

	directory := card.NewDirectory()
	local, err := dispatch.NewLocal(directory, publisher)
	if err != nil {
		return nil, err
	}

	mem := memoryinmem.New()
	if err := registerAgents(local, client, flags.modelName, st, mem, logger, metrics, tracer); err != nil {
		return nil, err
	}

	policy := supervisor.DefaultPolicy()
	if flags.policyFile != "" {
		policy, err = supervisor.LoadPolicy(flags.policyFile)
		if err != nil {
			return nil, err
		}
	}
	sup, err := supervisor.New(supervisor.Config{
		Model:              client,
		ModelName:          flags.modelName,
		Dispatcher:         local,
		Directory:          directory,
		Policy:             policy,
		ConcurrentDispatch: flags.concurrent,
		Logger:             logger,
		Metrics:            metrics,
		Tracer:             tracer,
	})
	if err != nil {
		return nil, err
	}

	return &services{
		directory:  directory,
		dispatcher: local,
		supervisor: sup,
		store:      st,
		cleanup: func(ctx context.Context) {
			for _, fn := range cleanups {
				fn(ctx)
			}
		},
	}, nil
}

func buildModelClient(flags *rootFlags, requireModel bool) (model.Client, error) {
	apiKey := flags.apiKey
	if apiKey == "" {
		switch flags.provider {
		case "anthropic":
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if flags.modelName == "" {
		flags.modelName = defaultModels[flags.provider]
	}
	if apiKey == "" {
		if requireModel {
			return nil, fmt.Errorf("no API key: set --api-key or the provider's environment variable")
		}
		return stubModel{}, nil
	}

	var (
		client model.Client
		err    error
	)
	switch flags.provider {
	case "anthropic":
		client, err = anthropic.NewFromAPIKey(apiKey, flags.modelName)
	case "openai":
		client, err = openai.NewFromAPIKey(apiKey, flags.modelName)
	default:
		return nil, fmt.Errorf("unknown provider %q", flags.provider)
	}
	if err != nil {
		return nil, err
	}
	limiter := middleware.NewAdaptiveRateLimiter(0, 0)
	return limiter.Middleware()(client), nil
}

func buildStore(ctx context.Context, flags *rootFlags) (store.Store, func(ctx context.Context), error) {
	if flags.mongoURI == "" {
		return storeinmem.New(), nil, nil
	}
	mc, err := mongo.Connect(mongooptions.Client().ApplyURI(flags.mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	collection := mc.Database(flags.mongoDB).Collection("records")
	cleanup := func(ctx context.Context) {
		if err := mc.Disconnect(ctx); err != nil {
			log.Printf(ctx, "mongodb disconnect: %v", err)
		}
	}
	return mongostore.New(collection), cleanup, nil
}

func buildEventSink(flags *rootFlags) (events.Sink, func(ctx context.Context), error) {
	if flags.redisAddr == "" {
		return eventsinmem.New(), nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: flags.redisAddr})
	client, err := pulseevents.New(pulseevents.Options{Redis: rdb})
	if err != nil {
		return nil, nil, err
	}
	sink, err := pulseevents.NewSink(pulseevents.SinkOptions{Client: client})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func(ctx context.Context) {
		if err := rdb.Close(); err != nil {
			log.Printf(ctx, "redis close: %v", err)
		}
	}
	return sink, cleanup, nil
}

func registerAgents(local *dispatch.Local, client model.Client, modelName string, st store.Store, mem *memoryinmem.Store, logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) error {
	ordersAgent, err := orders.New(orders.Config{
		Store: st, Model: client, ModelName: modelName, Memory: mem,
		Logger: logger, Metrics: metrics, Tracer: tracer,
	})
	if err != nil {
		return err
	}
	paymentsAgent, err := payments.New(payments.Config{
		Store: st, Model: client, ModelName: modelName, Memory: mem,
		Logger: logger, Metrics: metrics, Tracer: tracer,
	})
	if err != nil {
		return err
	}
	warehouseAgent, err := warehouse.New(warehouse.Config{
		Store: st, Model: client, ModelName: modelName, Memory: mem,
		Logger: logger, Metrics: metrics, Tracer: tracer,
	})
	if err != nil {
		return err
	}
	notificationsAgent, err := notifications.New(notifications.Config{
		Model: client, ModelName: modelName, Memory: mem,
		Logger: logger, Metrics: metrics, Tracer: tracer,
	})
	if err != nil {
		return err
	}
	if err := local.Register(ordersAgent, "local://"+orders.AgentID); err != nil {
		return err
	}
	if err := local.Register(paymentsAgent, "local://"+payments.AgentID); err != nil {
		return err
	}
	if err := local.Register(warehouseAgent, "local://"+warehouse.AgentID); err != nil {
		return err
	}
	return local.Register(notificationsAgent, "local://"+notifications.AgentID)
}

// seedFixtures writes sample orders and inventory so local runs have records
// for the tools to act on.
func seedFixtures(ctx context.Context, st store.Store, tenantID string) error {
	fixtures := map[string]map[string]any{
		"order/ORD-1001": {
			"status":   "in_transit",
			"value":    250.0,
			"items":    []any{map[string]any{"sku": "SKU-1001", "quantity": 1.0}},
			"customer": "customer-42",
		},
		"order/ORD-1002": {
			"status":   "in_transit",
			"value":    40.0,
			"items":    []any{map[string]any{"sku": "SKU-1002", "quantity": 2.0}},
			"customer": "customer-77",
		},
		"inventory/SKU-1001": {"available": 25.0},
		"inventory/SKU-1002": {"available": 3.0},
	}
	for key, value := range fixtures {
		if _, err := st.Put(ctx, tenantID, key, value); err != nil {
			return err
		}
	}
	return nil
}

// stubModel rejects completion calls. It is wired for metadata-only commands
// that never reach the model.
type stubModel struct{}

func (stubModel) Complete(context.Context, model.Request) (model.Response, error) {
	return model.Response{}, errors.New("model client is not configured")
}
