package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-translate-llm/src/singleinstance"
)

type stressOptions struct {
	n        int
	lang     string
	copy     bool
	deadline time.Duration
}

type stats struct {
	launched     int
	ok           int32
	busy         int32
	notDelegated int32
	errs         int32
}

func (s *stats) String() string {
	return fmt.Sprintf("launched=%d ok=%d busy=%d no-resident=%d err=%d",
		s.launched, s.ok, s.busy, s.notDelegated, s.errs)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-start",
		Short:         "Fire concurrent delegated start requests at the resident",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			s := runWithOptions(*opts, singleinstance.NewClient)
			fmt.Fprintf(cmd.OutOrStdout(), "%s elapsed=%s\n", s, time.Since(start))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.lang, "lang", "", "target language sent with every request")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "ask the resident to copy each translation")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

// runWithOptions launches opts.n clients at once. Only one can win the
// selection; the rest should come back busy.
func runWithOptions(opts stressOptions, newClient func() singleinstance.Client) *stats {
	s := &stats{launched: opts.n}
	var wg sync.WaitGroup
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			delegated, _, err := newClient().TryStart(ctx, singleinstance.Request{TargetLanguage: opts.lang, Copy: opts.copy})
			switch {
			case err != nil && strings.Contains(strings.ToLower(err.Error()), "busy"):
				atomic.AddInt32(&s.busy, 1)
			case err != nil:
				atomic.AddInt32(&s.errs, 1)
			case !delegated:
				atomic.AddInt32(&s.notDelegated, 1)
			default:
				atomic.AddInt32(&s.ok, 1)
			}
		}()
	}
	wg.Wait()
	return s
}

