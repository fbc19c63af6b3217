package grpc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for the storefront.
const ServiceName = "storefront.Storefront"

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthChecker pings the backing stores and mirrors the result into a
// grpc health server.
type HealthChecker struct {
	server   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHealthChecker(server *health.Server, interval time.Duration, logger *zap.Logger, checks map[string]Pinger) *HealthChecker {
	return &HealthChecker{
		server:   server,
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Check pings every dependency and returns the first failure in name order.
func (c *HealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.checks[name].Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Run updates the serving status every interval until ctx is cancelled.
func (c *HealthChecker) Run(ctx context.Context) {
	c.update(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.update(ctx)
		case <-ctx.Done():
			c.server.Shutdown()
			return
		}
	}
}

func (c *HealthChecker) update(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("dependency unhealthy", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
}
