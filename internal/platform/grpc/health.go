package grpc

import (
	"context"
	"errors"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// WatchHealth polls the health service every interval until ctx ends and calls
// onChange whenever the SERVING state flips. The first poll always reports.
func WatchHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, interval time.Duration, onChange func(serving bool)) error {
	if conn == nil {
		return &DialError{Stage: DialStageHealth, Err: errors.New("connection is not configured")}
	}
	if onChange == nil {
		return errors.New("health change callback is required")
	}
	if interval <= 0 {
		interval = time.Second
	}

	healthClient := grpc_health_v1.NewHealthClient(conn)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	known := false
	last := false
	for {
		callCtx, cancel := context.WithTimeout(ctx, interval)
		response, err := healthClient.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		serving := err == nil && response.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
		if !known || serving != last {
			known = true
			last = serving
			onChange(serving)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
