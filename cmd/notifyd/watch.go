package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ajkula/GoNotify/adapter/inbound/grpc"
	"github.com/ajkula/GoNotify/adapter/outbound/backend"
	"github.com/ajkula/GoNotify/adapter/outbound/ignore"
	"github.com/ajkula/GoNotify/domain/model"
	"github.com/ajkula/GoNotify/domain/service"
)

type watchCommand struct {
	Paths     []string      `arg:"" optional:"" type:"path" help:"Paths to watch"`
	Recursive bool          `short:"r" help:"Watch directories recursively"`
	Backend   string        `short:"b" default:"recommended" help:"Backend to use (${backends})"`
	Debounce  time.Duration `short:"d" default:"100ms" help:"Debounce interval"`
	Immediate bool          `help:"Disable debouncing"`
	Ignore    []string      `short:"i" help:"Glob patterns of paths to ignore"`
	Remote    string        `placeholder:"ADDR" help:"Stream from a notifyd gRPC address instead of watching locally"`
}

func (c *watchCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	if c.Remote != "" {
		return c.streamRemote(ctx, enc)
	}
	if len(c.Paths) == 0 {
		return errors.New("at least one path is required")
	}
	return c.watchLocal(ctx, enc)
}

func (c *watchCommand) watchLocal(ctx context.Context, enc *json.Encoder) error {
	factory, err := backend.ByName(c.Backend, backend.Options{})
	if err != nil {
		return err
	}
	filter, err := ignore.New(c.Ignore...)
	if err != nil {
		return err
	}

	opts := []service.WatcherOption{service.WithDebounce(c.Debounce), service.WithFilter(filter)}
	if c.Immediate {
		opts = append(opts, service.WithImmediate())
	}
	watcher, err := service.NewWatcherService(factory, opts...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	mode := model.NonRecursive
	if c.Recursive {
		mode = model.Recursive
	}
	for _, path := range c.Paths {
		if err := watcher.Watch(path, mode); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case result, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := enc.Encode(result); err != nil {
				return err
			}
		}
	}
}

func (c *watchCommand) streamRemote(ctx context.Context, enc *json.Encoder) error {
	conn, err := grpclib.NewClient(c.Remote, grpclib.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.Remote, err)
	}
	defer conn.Close()

	stream, err := grpc.Subscribe(ctx, conn)
	if err != nil {
		return err
	}

	for {
		msg, err := stream.Recv()
		if err == io.EOF || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		result, err := grpc.StructToResult(msg)
		if err != nil {
			return err
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
}
