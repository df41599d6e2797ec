package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/procflow/procflow/audit"
	"github.com/procflow/procflow/config"
	"github.com/procflow/procflow/engine"
	"github.com/procflow/procflow/event"
	"github.com/procflow/procflow/executor"
	"github.com/procflow/procflow/graph"
	"github.com/procflow/procflow/logger"
	"github.com/procflow/procflow/metadata"
	"github.com/procflow/procflow/model"
	"github.com/procflow/procflow/persistence"
	"github.com/procflow/procflow/persistence/inmem"
	rds "github.com/procflow/procflow/persistence/redis"
	"github.com/procflow/procflow/rest"
	"github.com/procflow/procflow/service"
)

// Agent wires storage, engine, services and the http server into one
// process.
type Agent struct {
	Config          config.Config
	storage         *persistence.Storage
	metadataService *metadata.MetadataService
	flowEngine      *engine.FlowEngine
	instanceService *service.InstanceService
	eventService    *service.EventService
	retrySweeper    *service.DeviceRetrySweeper
	httpServer      *rest.Server
	shutdown        bool
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupMetadataService,
		a.setupEngine,
		a.setupInstanceService,
		a.setupExecutors,
		a.setupEventService,
		a.setupRetrySweeper,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.storage = rds.NewStorage(a.Config.RedisConfig)
	case config.STORAGE_TYPE_INMEM:
		a.storage = inmem.NewStorage()
	default:
		return fmt.Errorf("unknown storage implementation %s", a.Config.StorageType)
	}
	return nil
}

func (a *Agent) setupMetadataService() error {
	ttl := time.Duration(a.Config.GraphCacheTTLSeconds) * time.Second
	a.metadataService = metadata.NewMetadataService(a.storage.Definitions, a.storage.Versions, ttl)
	return nil
}

func (a *Agent) setupEngine() error {
	recorder := audit.NewRecorder(a.storage.ExecutionLogs)
	a.flowEngine = engine.NewFlowEngine(a.storage.Instances, a.storage.Events, a.metadataService, graph.NewJsEvaluator(), recorder)
	return nil
}

func (a *Agent) setupInstanceService() error {
	a.instanceService = service.NewInstanceService(a.storage, a.metadataService, a.flowEngine)
	return nil
}

func (a *Agent) setupExecutors() error {
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_START, executor.StartExecutor{})
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_END, executor.EndExecutor{})
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_PARALLEL_GATEWAY, executor.ParallelGatewayExecutor{})
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_EXCLUSIVE_GATEWAY, executor.ExclusiveGatewayExecutor{})
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_WAIT, executor.WaitExecutor{})
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_EVENT, executor.EventNodeExecutor{})
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_TASK, executor.NewTaskExecutor())
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_CONDITION, executor.NewConditionExecutor(graph.NewJsEvaluator()))
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_DEVICE_ACTION, executor.NewDeviceActionExecutor(a.storage.DeviceActions, executor.LogDispatcher{}))
	a.flowEngine.RegisterNodeExecutor(model.NODE_TYPE_SUB_PROCESS, executor.NewSubProcessExecutor(a.instanceService))
	event.RegisterBuiltinHandlers(a.flowEngine, a.metadataService)
	return nil
}

func (a *Agent) setupEventService() error {
	a.eventService = service.NewEventService(a.storage.Events, a.flowEngine, &a.wg, a.Config.EventWorkerCapacity)
	a.eventService.Start()
	return nil
}

func (a *Agent) setupRetrySweeper() error {
	interval := time.Duration(a.Config.RetrySweepSeconds) * time.Second
	a.retrySweeper = service.NewDeviceRetrySweeper(a.storage.DeviceActions, executor.LogDispatcher{}, interval, &a.wg)
	a.retrySweeper.Start()
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.instanceService, a.eventService)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.eventService.Stop()
			return nil
		},
		func() error {
			a.retrySweeper.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
