package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAwaitShutdownReturnsEarlyGRPCFailure(t *testing.T) {
	grpcDone := make(chan error, 1)
	grpcDone <- errors.New("bind: address already in use")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	exited, err := awaitShutdown(ctx, grpcDone)
	if !exited || err == nil || err.Error() != "bind: address already in use" {
		t.Fatalf("expected the grpc error without waiting for ctx, got %v %v", err, exited)
	}
}

func TestAwaitShutdownTreatsCleanExitAsFailure(t *testing.T) {
	grpcDone := make(chan error, 1)
	grpcDone <- nil
	if exited, err := awaitShutdown(context.Background(), grpcDone); !exited || err == nil {
		t.Fatalf("expected an error for an unexpected stop, got %v %v", err, exited)
	}
}

func TestAwaitShutdownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if exited, err := awaitShutdown(ctx, make(chan error)); exited || err != nil {
		t.Fatalf("expected a plain shutdown, got %v %v", err, exited)
	}
}
