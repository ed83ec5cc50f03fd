package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/contentsquare/atomiccell/clients"
	"github.com/contentsquare/atomiccell/config"
	"github.com/contentsquare/atomiccell/internal/stress"
	"github.com/contentsquare/atomiccell/log"
	"github.com/redis/go-redis/v9"
)

// Reporter publishes scenario results.
type Reporter interface {
	io.Closer

	Report(ctx context.Context, res stress.Result) error
}

// New returns the reporters described by cfg. Results are always logged.
func New(ctx context.Context, cfg config.Report) (Reporter, error) {
	reporters := multiReporter{logReporter{}}
	if cfg.Redis != nil {
		client, err := clients.NewRedisClient(ctx, *cfg.Redis)
		if err != nil {
			return nil, err
		}
		reporters = append(reporters, newRedisReporter(client, cfg.Redis.KeyPrefix, time.Duration(cfg.Redis.TTL)))
	}
	return reporters, nil
}

type logReporter struct{}

func (logReporter) Report(_ context.Context, res stress.Result) error {
	if res.Err != nil {
		log.Errorf("scenario %q failed after %d operations in %s: %s", res.Scenario, res.Ops, res.Duration, res.Err)
		return nil
	}
	log.Infof("scenario %q passed: %d operations in %s, final value %d", res.Scenario, res.Ops, res.Duration, res.Final)
	return nil
}

func (logReporter) Close() error { return nil }

// multiReporter reports to every reporter and returns the first error.
type multiReporter []Reporter

func (m multiReporter) Report(ctx context.Context, res stress.Result) error {
	var firstErr error
	for _, r := range m {
		if err := r.Report(ctx, res); err != nil {
			log.Errorf("cannot report scenario %q: %s", res.Scenario, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m multiReporter) Close() error {
	var firstErr error
	for _, r := range m {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// redisReporter stores every result as a hash under `<prefix>:<scenario>`.
type redisReporter struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newRedisReporter(client redis.UniversalClient, prefix string, ttl time.Duration) *redisReporter {
	return &redisReporter{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *redisReporter) key(scenario string) string {
	if r.prefix == "" {
		return scenario
	}
	return r.prefix + ":" + scenario
}

func (r *redisReporter) Report(ctx context.Context, res stress.Result) error {
	status := "passed"
	errMsg := ""
	if res.Err != nil {
		status = "failed"
		errMsg = res.Err.Error()
	}
	key := r.key(res.Scenario)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"status", status,
			"ops", strconv.FormatInt(int64(res.Ops), 10),
			"duration_ms", strconv.FormatInt(res.Duration.Milliseconds(), 10),
			"final", strconv.FormatInt(int64(res.Final), 10),
			"error", errMsg,
			"reported_at", time.Now().UTC().Format(time.RFC3339),
		)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store result in redis under %q: %w", key, err)
	}
	log.Debugf("scenario %q stored in redis under %q", res.Scenario, key)
	return nil
}

func (r *redisReporter) Close() error {
	return r.client.Close()
}
