package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"movierec/internal/app"
	"movierec/internal/jobs"
	"movierec/pkg/logger"
	"movierec/pkg/utils"
)

type argList jobs.Args

func (a argList) String() string { return fmt.Sprint(map[string]string(a)) }

func (a argList) Set(s string) error {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("want key=value, got %q", s)
	}
	a[k] = v
	return nil
}

func main() {
	args := argList{}
	var (
		job     = flag.String("job", jobs.DailyFullSync, "job to run")
		enqueue = flag.Bool("enqueue", false, "queue the job for the api-server workers instead of running it here")
		list    = flag.Bool("list", false, "print registered jobs and exit")
	)
	flag.Var(args, "arg", "job argument as key=value (repeatable)")
	flag.Parse()

	cfg, err := utils.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	defer a.Close()

	if *list {
		for _, name := range a.Registry.Names() {
			fmt.Println(name)
		}
		return
	}

	if *enqueue {
		run, err := a.Queue.Enqueue(ctx, *job, jobs.Args(args))
		if err != nil {
			log.Fatal("enqueue failed", "job", *job, "error", err)
		}
		fmt.Printf("queued %s as %s\n", run.Name, run.ID)
		return
	}

	res, err := jobs.NewRunner(a.Registry, log).Run(ctx, *job, jobs.Args(args))
	if err != nil {
		log.Fatal("run failed", "job", *job, "error", err)
	}
	fmt.Println(res.Status)
	if !res.OK {
		a.Close()
		os.Exit(1)
	}
}
