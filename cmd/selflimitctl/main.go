// selflimitctl is an operator CLI for the self-limiters runtime: warm up
// Lua scripts on a store, inspect a semaphore's queue depth, and run
// small interactive demos of both limiter kinds against a live store.
//
// Usage:
//
//	selflimitctl [global options] <command> [command args]
//
// Global options:
//
//	-a, --addr     store address (default: localhost:6379)
//	-t, --timeout  command timeout (default: 10s)
//
// Commands:
//
//	warmup                 load both Lua scripts into the store's script cache
//	sem status <name> <cap>  report a semaphore's available/capacity slots
//	sem demo <name> <cap>  acquire and release once against a live semaphore
//	bucket demo <name>     acquire once against a live token bucket
//	maintain <cron-spec>   run the warmup job on a schedule until interrupted
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/snok/self-limiters/pkg/limitermaint"
	"github.com/snok/self-limiters/pkg/limiterstore"
	"github.com/snok/self-limiters/pkg/semaphore"
	"github.com/snok/self-limiters/pkg/tokenbucket"
)

const defaultTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:  "selflimitctl",
		Usage: "operator CLI for the self-limiters runtime",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "store address",
				Value:   "localhost:6379",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "command timeout",
				Value:   defaultTimeout,
			},
		},
		Commands: []*cli.Command{
			warmupCommand(),
			semCommand(),
			bucketCommand(),
			maintainCommand(),
		},
	}
}

func storeFromCommand(cmd *cli.Command) *limiterstore.Client {
	rdb := redis.NewClient(&redis.Options{Addr: cmd.String("addr")})
	return limiterstore.New(rdb)
}

func rawClientFromCommand(cmd *cli.Command) redis.UniversalClient {
	return redis.NewClient(&redis.Options{Addr: cmd.String("addr")})
}

func warmupCommand() *cli.Command {
	return &cli.Command{
		Name:  "warmup",
		Usage: "load both Lua scripts into the store's script cache",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rdb := rawClientFromCommand(cmd)
			defer func() { _ = rdb.Close() }()

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			if err := limitermaint.WarmupAll(ctx, rdb); err != nil {
				return fmt.Errorf("warmup: %w", err)
			}
			fmt.Println("warmup complete")
			return nil
		},
	}
}

func semCommand() *cli.Command {
	return &cli.Command{
		Name:  "sem",
		Usage: "semaphore operations",
		Commands: []*cli.Command{
			{
				Name:      "status",
				Usage:     "report a semaphore's available/capacity slots",
				ArgsUsage: "<name> <capacity>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().Get(0)
					capacity := cmd.Args().Get(1)
					if name == "" || capacity == "" {
						return fmt.Errorf("sem status requires <name> <capacity>")
					}
					capN, err := parsePositiveInt(capacity)
					if err != nil {
						return err
					}

					store := storeFromCommand(cmd)
					sem, err := semaphore.New(store, name, capN)
					if err != nil {
						return err
					}

					ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
					defer cancel()

					available, total, err := sem.Query(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%s: %d/%d available\n", name, available, total)
					return nil
				},
			},
			{
				Name:      "demo",
				Usage:     "acquire and release once against a live semaphore",
				ArgsUsage: "<name> <capacity>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().Get(0)
					capacity := cmd.Args().Get(1)
					if name == "" || capacity == "" {
						return fmt.Errorf("sem demo requires <name> <capacity>")
					}
					capN, err := parsePositiveInt(capacity)
					if err != nil {
						return err
					}

					store := storeFromCommand(cmd)
					sem, err := semaphore.New(store, name, capN, semaphore.WithMaxSleep(cmd.Duration("timeout")))
					if err != nil {
						return err
					}

					return sem.Do(ctx, func(ctx context.Context) error {
						fmt.Printf("holding a slot on %q\n", name)
						return nil
					})
				},
			},
		},
	}
}

func bucketCommand() *cli.Command {
	return &cli.Command{
		Name:  "bucket",
		Usage: "token bucket operations",
		Commands: []*cli.Command{
			{
				Name:      "demo",
				Usage:     "acquire once against a live token bucket",
				ArgsUsage: "<name>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					name := cmd.Args().Get(0)
					if name == "" {
						return fmt.Errorf("bucket demo requires <name>")
					}

					store := storeFromCommand(cmd)
					bucket, err := tokenbucket.New(store, name, 1, time.Second, 1, tokenbucket.WithMaxSleep(cmd.Duration("timeout")))
					if err != nil {
						return err
					}

					return bucket.Do(ctx, func(ctx context.Context) error {
						fmt.Printf("token consumed on %q\n", name)
						return nil
					})
				},
			},
		},
	}
}

func maintainCommand() *cli.Command {
	return &cli.Command{
		Name:      "maintain",
		Usage:     "run the warmup job on a schedule until interrupted",
		ArgsUsage: "<cron-spec>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			spec := cmd.Args().Get(0)
			if spec == "" {
				spec = "@every 5m"
			}

			rdb := rawClientFromCommand(cmd)
			defer func() { _ = rdb.Close() }()

			sched := limitermaint.NewScheduler(nil)
			if _, err := sched.AddWarmup(spec, rdb); err != nil {
				return fmt.Errorf("schedule warmup: %w", err)
			}

			sched.Start()
			defer sched.Stop()

			fmt.Printf("maintaining on schedule %q, press ctrl-c to stop\n", spec)
			<-ctx.Done()
			return nil
		},
	}
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("value must be >= 1, got %d", n)
	}
	return n, nil
}
