package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/config"
	"agrolink/api/internal/email"
	"agrolink/api/internal/services"
	"agrolink/api/internal/storage"
)

// TaskType defines the type of a background task.
const (
	TypeEmailDelivery    = "email:deliver"
	TypeImageProcess     = "image:process"
	TypePaymentReconcile = "payment:reconcile"
)

const (
	queueCritical = "critical"
	queueDefault  = "default"
	queueImages   = "images"
)

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// ImageAttacher records a processed image on its product.
type ImageAttacher interface {
	AddImage(ctx context.Context, productID primitive.ObjectID, key string) error
}

// PaymentReconciler settles payments whose webhook never arrived.
type PaymentReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	storageService       storage.IS3Storage
	products             ImageAttacher
	payments             PaymentReconciler
	emailTemplateService services.IEmailTemplateService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	products ImageAttacher,
	payments PaymentReconciler,
	emailTemplateService services.IEmailTemplateService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		storageService:       storageService,
		products:             products,
		payments:             payments,
		emailTemplateService: emailTemplateService,
	}
}

// SetupServer configures an Asynq server and its handlers. It returns nil
// when the process runs neither worker.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, isImageWorker bool, isBgWorker bool) (*asynq.Server, *asynq.ServeMux) {
	if !isBgWorker && !isImageWorker {
		log.Println("Running in API mode, no task server started.")
		return nil, nil
	}

	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				queueCritical: 6,
				queueDefault:  3,
				queueImages:   5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	if isBgWorker {
		mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
		mux.HandleFunc(TypePaymentReconcile, processor.HandlePaymentReconcileTask)
		log.Println("Registered background task handlers (email & payment reconciliation).")
	}

	if isImageWorker {
		mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
		log.Println("Registered image processing task handlers.")
	}

	return srv, mux
}

// NewReconcileScheduler enqueues a reconciliation task every
// cfg.PaymentReconcileInterval.
func NewReconcileScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt(rdb), &asynq.SchedulerOpts{Location: time.UTC})
	spec := fmt.Sprintf("@every %s", cfg.PaymentReconcileInterval)
	task := asynq.NewTask(TypePaymentReconcile, nil)
	if _, err := scheduler.Register(spec, task, asynq.Queue(queueDefault), asynq.MaxRetry(0), asynq.Unique(cfg.PaymentReconcileInterval)); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", TypePaymentReconcile, err)
	}
	return scheduler, nil
}

// HandlePaymentReconcileTask verifies stale pending payments against the gateway.
func (p *TaskProcessor) HandlePaymentReconcileTask(ctx context.Context, t *asynq.Task) error {
	settled, err := p.payments.ReconcilePending(ctx, p.cfg.PaymentReconcileMinAge)
	if err != nil {
		return fmt.Errorf("payment reconciliation failed: %w", err)
	}
	if settled > 0 {
		log.Printf("Payment reconciliation settled %d payments", settled)
	}
	return nil
}
