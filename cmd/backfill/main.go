package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/app"
	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/jobs/pipeline/clan_ingest"
)

type phaseList []string

func (l *phaseList) String() string { return strings.Join(*l, ",") }
func (l *phaseList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*l = append(*l, p)
		}
	}
	return nil
}

func main() {
	var skip phaseList
	var clanTag, jobID string
	var enqueue bool
	var wait time.Duration
	flag.StringVar(&clanTag, "clan", "", "clan tag to ingest (defaults to HOME_CLAN_TAG)")
	flag.StringVar(&jobID, "job-id", "", "job id to use instead of a generated one")
	flag.Var(&skip, "skip", "comma-separated phases to skip, e.g. fetch,transform (repeatable)")
	flag.BoolVar(&enqueue, "enqueue", false, "run through the job queue instead of calling the pipeline directly")
	flag.DurationVar(&wait, "wait", 15*time.Minute, "how long -enqueue waits for the queue to drain")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close(context.Background())

	if clanTag == "" {
		clanTag = a.Cfg.HomeClanTag
	}

	if enqueue {
		if len(skip) > 0 {
			fmt.Println("-skip is ignored with -enqueue")
		}
		a.Start(false)
		id, err := a.Services.Queue.Enqueue(ctx, clanTag, jobID)
		if err != nil {
			fmt.Printf("enqueue failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("enqueued job %s for %s\n", id, clanTag)
		drainCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		if err := a.Services.Queue.Drain(drainCtx); err != nil {
			fmt.Printf("queue did not drain: %v\n", err)
			os.Exit(1)
		}
		job, err := a.Services.JobStore.GetJob(ctx, id)
		if err != nil || job == nil {
			fmt.Printf("job %s lookup failed: %v\n", id, err)
			os.Exit(1)
		}
		printJSON(job)
		return
	}

	// an existing -job-id starts its next attempt
	res, err := a.Services.Pipeline.RunStagedIngestion(ctx, clan_ingest.RunOptions{
		ClanTag:    clanTag,
		JobID:      jobID,
		SkipPhases: skip,
	})
	if res != nil {
		printJSON(res)
	}
	if err != nil {
		fmt.Printf("ingestion failed: %v\n", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
