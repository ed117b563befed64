// Package main provides a benchmark tool for taskqueue to measure
// message throughput. It enqueues a large number of dummy messages
// through pkg/producer and polls the broker until they have all been
// consumed by a running worker fleet.
//
// Usage:
//
//	go run benchmark/main.go -messages 100000
package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guido-cesarano/taskqueue/pkg/broker"
	"github.com/guido-cesarano/taskqueue/pkg/producer"
	"github.com/redis/go-redis/v9"
)

func main() {
	numMessages := flag.Int("messages", 100000, "Number of messages to enqueue")
	numEnqueuers := flag.Int("enqueuers", 10, "Number of concurrent enqueuers")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address")
	flag.Parse()

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	b := broker.NewRedisBrokerFromClient(rdb)
	app := producer.New(b)
	benchmarkTask := app.RegisterTask("benchmark")

	ctx := context.Background()

	fmt.Printf("taskqueue benchmark\n")
	fmt.Printf("===================\n")
	fmt.Printf("Messages to enqueue: %d\n", *numMessages)
	fmt.Printf("Concurrent enqueuers: %d\n\n", *numEnqueuers)

	fmt.Printf("Starting enqueue phase...\n")
	startEnqueue := time.Now()

	var wg sync.WaitGroup
	var enqueued atomic.Int64
	perEnqueuer := *numMessages / *numEnqueuers

	for i := 0; i < *numEnqueuers; i++ {
		wg.Add(1)
		go func(enqueuerID int) {
			defer wg.Done()
			for j := 0; j < perEnqueuer; j++ {
				kwargs := map[string]interface{}{"enqueuer": enqueuerID, "seq": j}
				if _, err := benchmarkTask.Delay(ctx, nil, kwargs); err != nil {
					fmt.Printf("error enqueuing: %v\n", err)
					return
				}
				enqueued.Add(1)
			}
		}(i)
	}

	wg.Wait()
	enqueueTime := time.Since(startEnqueue)

	fmt.Printf("enqueued %d messages in %s\n", enqueued.Load(), enqueueTime)
	fmt.Printf("  throughput: %.2f messages/sec\n\n", float64(enqueued.Load())/enqueueTime.Seconds())

	fmt.Printf("waiting for all messages to be processed...\n")
	startProcess := time.Now()

	for {
		depths, err := b.GetQueueDepths(ctx)
		if err != nil {
			fmt.Printf("error reading queue depths: %v\n", err)
			break
		}
		remaining := depths[broker.Ready] + depths[broker.Reserved]

		if remaining == 0 {
			break
		}

		time.Sleep(2 * time.Second)
		fmt.Printf("  remaining: %d messages\n", remaining)
	}

	processTime := time.Since(startProcess)

	fmt.Printf("\nall messages processed in %s\n", processTime)
	fmt.Printf("  throughput: %.2f messages/sec\n", float64(*numMessages)/processTime.Seconds())

	totalTime := enqueueTime + processTime
	fmt.Printf("\ntotal time: %s\n", totalTime)
	fmt.Printf("overall throughput: %.2f messages/sec\n", float64(*numMessages)/totalTime.Seconds())
}
