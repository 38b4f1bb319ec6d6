// Copyright 2025 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ioqstress hammers a buffered pipe device with concurrent readers,
// writers and cancellers, tears the device down mid-traffic, and verifies
// that every submitted request was completed exactly once.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"v.io/x/lib/cmdline"
	"v.io/x/lib/vlog"

	"v.io/x/ioq"
	"v.io/x/ioq/iodev"
)

func main() {
	cmdline.Main(cmdIOQStress)
}

var cmdIOQStress = &cmdline.Command{
	Runner: cmdline.RunnerFunc(runStress),
	Name:   "ioqstress",
	Short:  "stress the request lifetime core",
	Long: `
Command ioqstress drives a buffered pipe device with concurrent readers,
writers and an asynchronous canceller, then tears the device down while
traffic is still in flight.

Reads park in the device's cancellable queue whenever the pipe buffer is
empty, writers are rate limited so parked reads accumulate, and a canceller
fires cancellation signals at random parked requests.  A session churner
exercises per-session cleanup.  When the run ends the device is torn down
mid-traffic and the tool verifies that every request submitted was completed
exactly once, and reports the completion counts per result.
`,
}

var (
	flagReaders  int
	flagWriters  int
	flagSessions int
	flagDuration time.Duration
	flagPayload  int
	flagBuffer   int
	flagRate     float64
)

func init() {
	cmdIOQStress.Flags.IntVar(&flagReaders, "readers", 8, `Number of reader goroutines.`)
	cmdIOQStress.Flags.IntVar(&flagWriters, "writers", 4, `Number of writer goroutines.`)
	cmdIOQStress.Flags.IntVar(&flagSessions, "sessions", 4, `Number of sessions requests are spread over.`)
	cmdIOQStress.Flags.DurationVar(&flagDuration, "duration", 5*time.Second, `How long to run before tearing the device down.`)
	cmdIOQStress.Flags.IntVar(&flagPayload, "payload", 256, `Payload size in bytes for each read and write.`)
	cmdIOQStress.Flags.IntVar(&flagBuffer, "buffer", 4096, `Pipe buffer size in bytes.`)
	cmdIOQStress.Flags.Float64Var(&flagRate, "rate", 1000, `Maximum writes per second across all writers.`)
}

// stats counts completions per result, and submissions overall.
type stats struct {
	submitted atomic.Int64
	completed atomic.Int64
	byResult  [ioq.NotSupported + 1]atomic.Int64
}

// submit builds a request of the given kind, dispatches it and records the
// completion when it arrives.  cancels, if non-nil, is offered every request
// that goes pending; notify, if non-nil, is closed once the request has
// completed.
func (s *stats) submit(d ioq.Dispatcher, kind ioq.Kind, session int, payload []byte, cancels chan<- *ioq.Request, notify chan struct{}) {
	s.submitted.Add(1)
	r := ioq.NewRequest(kind, session, payload, func(res ioq.Result, n int) {
		s.completed.Add(1)
		if int(res) < len(s.byResult) {
			s.byResult[res].Add(1)
		}
		if notify != nil {
			close(notify)
		}
	})
	if d.Dispatch(ioq.NewHandle(r)) == ioq.Pending && cancels != nil {
		select {
		case cancels <- r:
		default:
			// Canceller is busy; this one runs to completion.
		}
	}
}

func runStress(env *cmdline.Env, args []string) error {
	if len(args) > 0 {
		return env.UsageErrorf("ioqstress takes no arguments")
	}

	pipe := iodev.NewPipe(flagBuffer)
	var s stats
	cancels := make(chan *ioq.Request, 128)
	limiter := rate.NewLimiter(rate.Limit(flagRate), flagWriters)

	ctx, stop := context.WithTimeout(context.Background(), flagDuration)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i != flagReaders; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(i)))
			buf := make([]byte, flagPayload)
			for ctx.Err() == nil {
				done := make(chan struct{})
				s.submit(pipe, ioq.KindRead, rng.Intn(flagSessions), buf, cancels, done)
				// One outstanding read per reader: wait for it to complete
				// or for the run to end.  A read still parked when the run
				// ends is completed by teardown.
				select {
				case <-done:
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	for i := 0; i != flagWriters; i++ {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(1000 + i)))
			payload := make([]byte, flagPayload)
			for limiter.Wait(ctx) == nil {
				s.submit(pipe, ioq.KindWrite, rng.Intn(flagSessions), payload, cancels, nil)
			}
			return nil
		})
	}
	// The canceller: fires asynchronous cancellation signals at a sample of
	// the requests that went pending.
	g.Go(func() error {
		for {
			select {
			case r := <-cancels:
				r.Cancel()
			case <-ctx.Done():
				return nil
			}
		}
	})
	// The session churner: periodically cancels one session's parked
	// requests wholesale, as a handle close would.
	g.Go(func() error {
		rng := rand.New(rand.NewSource(2000))
		tick := time.NewTicker(100 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				s.submit(pipe, ioq.KindCleanup, rng.Intn(flagSessions), nil, nil, nil)
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Tear down with whatever is still parked in flight.
	pipe.Teardown()

	submitted, completed := s.submitted.Load(), s.completed.Load()
	vlog.Infof("ioqstress: %d submitted, %d completed", submitted, completed)
	for res := ioq.Success; res <= ioq.NotSupported; res++ {
		if n := s.byResult[res].Load(); n != 0 {
			fmt.Fprintf(env.Stdout, "%-20s %d\n", res, n)
		}
	}
	if submitted != completed {
		return fmt.Errorf("lost requests: %d submitted, %d completed", submitted, completed)
	}
	return nil
}
