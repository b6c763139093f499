// Package integration spins up the backing stores the services need as
// throwaway containers. Tests using it are gated behind INTEGRATION=1.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

type Env struct {
	PG        *postgres.PostgresContainer
	Redis     *redis.RedisContainer
	Kafka     *kafka.KafkaContainer
	PGURL     string
	RedisAddr string
	Brokers   []string
	cancel    context.CancelFunc
}

func Setup(ctx context.Context) (*Env, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)

	env := &Env{cancel: cancel}

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("microshop"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
	)
	if err != nil {
		cancel()
		return nil, err
	}
	env.PG = pgC

	if env.PGURL, err = pgC.ConnectionString(ctx, "sslmode=disable"); err != nil {
		env.Teardown(ctx)
		return nil, err
	}

	redisC, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		env.Teardown(ctx)
		return nil, err
	}
	env.Redis = redisC

	redisURL, err := redisC.ConnectionString(ctx)
	if err != nil {
		env.Teardown(ctx)
		return nil, err
	}
	// go-redis wants host:port, not redis://.
	env.RedisAddr = trimScheme(redisURL)

	kafkaC, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafka.WithClusterID("microshop-test"),
	)
	if err != nil {
		env.Teardown(ctx)
		return nil, err
	}
	env.Kafka = kafkaC

	if env.Brokers, err = kafkaC.Brokers(ctx); err != nil {
		env.Teardown(ctx)
		return nil, err
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	if e.Kafka != nil {
		_ = e.Kafka.Terminate(ctx)
	}
	if e.Redis != nil {
		_ = e.Redis.Terminate(ctx)
	}
	if e.PG != nil {
		_ = e.PG.Terminate(ctx)
	}
	e.cancel()
}

func trimScheme(u string) string {
	const scheme = "redis://"
	if len(u) > len(scheme) && u[:len(scheme)] == scheme {
		return u[len(scheme):]
	}
	return u
}
