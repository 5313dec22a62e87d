package appServer

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/roombooker/config"
	"github.com/ds124wfegd/roombooker/internal/database/memory"
	repository "github.com/ds124wfegd/roombooker/internal/database/postgres"
	roomcache "github.com/ds124wfegd/roombooker/internal/database/redis"
	"github.com/ds124wfegd/roombooker/internal/notification"
	"github.com/ds124wfegd/roombooker/internal/service"
	"github.com/ds124wfegd/roombooker/internal/transport"
	"github.com/ds124wfegd/roombooker/internal/worker"
	"github.com/ds124wfegd/roombooker/pkg/kafka"
	"github.com/ds124wfegd/roombooker/pkg/postgres"
	"github.com/ds124wfegd/roombooker/pkg/queue"
	"github.com/ds124wfegd/roombooker/pkg/rabbitMQ"
	"github.com/ds124wfegd/roombooker/pkg/redis"
	"github.com/ds124wfegd/roombooker/pkg/telegram"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type repositories struct {
	rooms        repository.RoomRepository
	reservations repository.ReservationRepository
	accesses     repository.AccessRepository
}

func openStorage(ctx context.Context, cfg *config.Config) (*repositories, func(), error) {
	if cfg.Storage.Driver == "memory" {
		logrus.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			rooms:        store.Rooms(),
			reservations: store.Reservations(),
			accesses:     store.Accesses(),
		}, func() {}, nil
	}

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return &repositories{
		rooms:        repository.NewRoomRepository(db),
		reservations: repository.NewReservationRepository(db),
		accesses:     repository.NewAccessRepository(db),
	}, func() { closeDB(db) }, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close database")
	}
}

// buildNotifiers wires every enabled sink. The returned hub is nil when
// websockets are disabled.
func buildNotifiers(ctx context.Context, cfg *config.NotificationsConfig, checks map[string]func() error) (*service.MultiNotifier, *notification.Hub, func()) {
	notifier := service.NewMultiNotifier(cfg.QueueSize, cfg.SinkTimeout)
	var closers []func() error

	var hub *notification.Hub
	if cfg.WebSocket.Enabled {
		hub = notification.NewHub(cfg.WebSocket.SendBuffer)
		notifier.Add("websocket", hub)
	}

	if cfg.RabbitMQ.Enabled {
		mq, err := rabbitMQ.NewRabbitMQ(rabbitMQ.RabbitMQConfig{URL: cfg.RabbitMQ.URL, QueueName: cfg.RabbitMQ.QueueName})
		if err != nil {
			logrus.WithError(err).Error("RabbitMQ unavailable, broker notifications disabled")
		} else {
			notifier.Add("rabbitmq", notification.NewBrokerNotifier(mq))
			closers = append(closers, mq.Close)
			checks["rabbitmq"] = mq.HealthCheck
		}
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logrus.WithError(err).Error("Kafka unavailable, event stream disabled")
		} else {
			notifier.Add("kafka", notification.NewEventStreamNotifier(producer))
			closers = append(closers, producer.Close)
		}
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
			logrus.Warn("Telegram bot token or chat id not provided, admin chat disabled")
		} else {
			notifier.Add("telegram", notification.NewTelegramNotifier(telegram.NewBot(cfg.Telegram.BotToken), cfg.Telegram.ChatID))
		}
	}

	logrus.WithField("sinks", notifier.Len()).Info("Notifications initialized")

	return notifier, hub, func() {
		notifier.Close()
		for _, c := range closers {
			if err := c(); err != nil {
				logrus.WithError(err).Warn("Failed to close notification sink")
			}
		}
	}
}

func NewServer(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	repos, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStorage()

	checks := make(map[string]func() error)

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			logrus.Errorf("Failed to connect to Redis: %v. Continuing without cache, lock and queue...", err)
		} else {
			defer redisClient.Close()
			checks["redis"] = func() error {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				return redisClient.Ping(ctx).Err()
			}
			repos.rooms = roomcache.NewRoomCache(repos.rooms, redisClient, cfg.Redis.CacheTTL)
		}
	}

	var redisQueue queue.Queue
	var taskPublisher service.TaskPublisher
	if cfg.Queue.Enabled && redisClient != nil {
		redisQueue = queue.NewRedisQueue(redisClient, &queue.RedisQueueConfig{
			Prefix:     cfg.Queue.Prefix,
			MaxRetries: cfg.Queue.MaxRetries,
			BaseDelay:  cfg.Queue.BaseDelay,
			PollEvery:  cfg.Queue.PollEvery,
		}, nil)
		// Создаем адаптер для очереди
		taskPublisher = service.NewQueueAdapter(redisQueue)
	}

	notifier, hub, closeNotifiers := buildNotifiers(ctx, &cfg.Notifications, checks)
	defer closeNotifiers()

	// Initialize services
	policy := service.PolicyFromConfig(&cfg.Booking)
	reservationService := service.NewReservationService(repos.reservations, repos.rooms, notifier, taskPublisher, policy, nil)
	accessService := service.NewAccessService(repos.accesses, repos.reservations, repos.rooms, notifier, policy, nil)
	lifecycleService := service.NewLifecycleService(repos.reservations, repos.accesses, notifier, policy, nil)
	roomService := service.NewRoomService(repos.rooms, repos.reservations, nil)

	// Initialize lifecycle worker
	workerOpts := worker.Options{
		NoShowInterval:     cfg.Worker.NoShowInterval,
		CompletionInterval: cfg.Worker.CompletionInterval,
	}
	if cfg.Worker.DistributedLock && redisClient != nil {
		workerOpts.Locker = redis.NewLocker(redisClient, "roombooker:lock:")
		workerOpts.LockTTL = cfg.Worker.LockTTL
	}
	lifecycleWorker := worker.NewLifecycleWorker(lifecycleService, workerOpts)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		lifecycleWorker.Start(ctx)
	}()

	// Start queue consumer
	if redisQueue != nil {
		taskHandler := worker.NewTaskHandler(lifecycleService)
		if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
			logrus.Errorf("Queue subscriber error: %v", err)
		}
		defer redisQueue.Close()
	}

	// Initialize handlers
	handlers := &transport.Handlers{
		Reservations: transport.NewReservationHandler(reservationService),
		Access:       transport.NewAccessHandler(accessService),
		Rooms:        transport.NewRoomHandler(roomService),
		Lifecycle:    transport.NewLifecycleHandler(lifecycleWorker),
	}
	if hub != nil {
		handlers.Notifications = transport.NewNotificationHandler(ctx, hub)
	}

	if cfg.IsProduction() || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transport.InitRoutes(handlers, transport.RouterConfig{
		JWTSecret:      cfg.JWT.Secret,
		JWTIssuer:      cfg.JWT.Issuer,
		RequestTimeout: cfg.Server.RequestTimeout,
		Version:        cfg.Server.AppVersion,
		HealthChecks:   checks,
	})

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("addr", cfg.GetServerAddress()).Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	cancel()
	<-workerDone
}
