package taskqueue

import (
	"log"

	"github.com/hibiken/asynq"
)

var (
	asynqClient *asynq.Client
	asynqMux    = asynq.NewServeMux()
	asynqSrv    *asynq.Server
)

// StartWorkers starts the forwarding workers. Concurrency is 1: the cloud
// event log records sequential hub history, so deliveries must keep their
// source topic order.
func StartWorkers(redisAddr string) {
	log.Printf("TASKQUEUE: starting workers with Redis at %s", redisAddr)
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	asynqMux.HandleFunc(TypeForwardEvent, forwardEventTask)
	asynqMux.HandleFunc(TypeForwardZigbeeEvent, forwardZigbeeEventTask)
	asynqSrv = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 1})
	if err := asynqSrv.Run(asynqMux); err != nil {
		log.Fatalf("TASKQUEUE: failed to start workers: %v", err)
	}
}

// StopWorkers stops the workers.
func StopWorkers() {
	log.Println("TASKQUEUE: stopping workers")
	asynqSrv.Stop()
	asynqClient.Close()
	log.Println("TASKQUEUE: workers stopped")
}
