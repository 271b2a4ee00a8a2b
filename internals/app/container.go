package app

import (
	"context"
	"upwatch/config"
	middle "upwatch/internals/middleware"
	"upwatch/internals/modules/alert"
	"upwatch/internals/modules/hub"
	"upwatch/internals/modules/probe"
	"upwatch/internals/modules/scheduler"
	"upwatch/internals/modules/tracker"
	"upwatch/internals/security"
	"upwatch/internals/storage/postgres"
	"upwatch/pkg/mailer"
	"upwatch/pkg/rabbitmq"
	"upwatch/pkg/redisstore"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type Container struct {
	DB          *pgxpool.Pool
	RedisClient *redisstore.Client
	Logger      *zerolog.Logger
	Scheduler   *scheduler.Scheduler
	Hub         *hub.Hub

	rabbitConn *amqp091.Connection
	publisher  *rabbitmq.Publisher
	hubHandler *hub.Handler
	authMW     *middle.AuthMiddleware
}

func NewContainer(ctx context.Context, db *pgxpool.Pool, cfg *config.Config, logger *zerolog.Logger) (*Container, error) {

	redisClient, err := redisstore.New(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	store := postgres.NewStore(db, logger)

	// the broker is optional; transition events are skipped when no
	// broker_url is configured
	var rabbitConn *amqp091.Connection
	var publisher *rabbitmq.Publisher
	var transitionPub alert.TransitionPublisher
	if cfg.RabbitMQ != nil && cfg.RabbitMQ.BrokerURL != "" {
		rabbitConn, err = rabbitmq.NewConnection(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		if err := rabbitmq.SetupTopology(rabbitConn, cfg.RabbitMQ); err != nil {
			return nil, err
		}
		publisher, err = rabbitmq.NewPublisher(rabbitConn, cfg.RabbitMQ.ExchangeName, cfg.RabbitMQ.RoutingKey)
		if err != nil {
			return nil, err
		}
		transitionPub = publisher
	}

	tokenSvc := security.NewTokenService(cfg.Auth)

	eventHub := hub.New(redisClient, logger)

	prober := probe.NewExecutor(cfg.Probe, logger)
	stateTracker := tracker.New(store, redisClient, cfg.Scheduler.DownThreshold, logger)
	dispatcher := alert.NewDispatcher(store, mailer.New(), transitionPub, logger)

	sch := scheduler.New(store, prober, stateTracker, dispatcher, eventHub, cfg.Scheduler, logger)

	hubHandler := hub.NewHandler(eventHub, tokenSvc, logger)
	authMW := middle.NewAuthMiddleware(tokenSvc)

	return &Container{
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
		Scheduler:   sch,
		Hub:         eventHub,
		rabbitConn:  rabbitConn,
		publisher:   publisher,
		hubHandler:  hubHandler,
		authMW:      authMW,
	}, nil
}

func (c *Container) Shutdown(ctx context.Context) error {
	c.Scheduler.Wait()

	if c.Hub != nil {
		c.Hub.Shutdown()
	}
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.rabbitConn != nil {
		c.rabbitConn.Close()
	}
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
	return nil
}
