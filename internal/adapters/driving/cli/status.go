package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// statusWait bounds how long status waits for the first resource sample.
var statusWait = 2 * time.Second

var statusCheck bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system load and scheduler state",
	Long: `Samples CPU, memory and GPU load once and shows the throttle state the
scheduler would apply to a build, with the current worker pool sizes.

With --check, also pings the configured embedding and language model
providers.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "ping the embedding and LLM providers")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errNotConfigured("scheduler")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go scheduler.Start(ctx) //nolint:errcheck // stopped below

	st := waitForSample(ctx)
	if err := scheduler.Stop(); err != nil {
		return err
	}

	s := st.Sample
	cmd.Printf("State:     %s\n", st.State)
	cmd.Printf("CPU:       %.1f%%\n", s.CPUPercent)
	cmd.Printf("Memory:    %.1f%% (%s free)\n", s.MemPercent, humanize.Bytes(s.AvailableMemory))
	if s.HasGPU {
		cmd.Printf("GPU:       %.1f%%\n", s.GPUPercent)
	}
	kinds := make([]string, 0, len(st.Pools))
	for kind := range st.Pools {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		cmd.Printf("Pool %-4s  %d workers\n", kind+":", st.Pools[domain.PoolKind(kind)])
	}
	if st.LeakSuspected {
		cmd.Println(warnStyle.Render("Memory keeps growing; a leak is suspected."))
	}
	if statusCheck {
		return printProviderChecks(cmd)
	}
	return nil
}

func printProviderChecks(cmd *cobra.Command) error {
	if providers == nil {
		return errNotConfigured("provider check")
	}
	cmd.Println()
	failed := false
	for _, c := range providers.CheckProviders(cmd.Context()) {
		model := c.Model
		if model == "" {
			model = "-"
		}
		if c.OK {
			cmd.Printf("%-10s %s: ok\n", c.Role, model)
			continue
		}
		failed = true
		cmd.Println(errorStyle.Render(fmt.Sprintf("%-10s %s: %v", c.Role, model, c.Err)))
	}
	if failed {
		return errSilent
	}
	return nil
}

func waitForSample(ctx context.Context) domain.SchedulerStatus {
	deadline := time.After(statusWait)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		st := scheduler.Status()
		if !st.Sample.Time.IsZero() {
			return st
		}
		select {
		case <-ctx.Done():
			return st
		case <-deadline:
			return st
		case <-tick.C:
		}
	}
}
