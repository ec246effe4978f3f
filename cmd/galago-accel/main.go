// Command galago-accel runs synthetic acceleration episodes (one per
// worker) end to end against an in-memory fake symbolic state, the
// analogue of the
// teacher's cmd/galago driver for manual inspection and smoke testing.
package main

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"github.com/zboralski/galago/internal/accel"
	"github.com/zboralski/galago/internal/accel/classify"
	"github.com/zboralski/galago/internal/accel/plugin"
	"github.com/zboralski/galago/internal/accel/pool"
	"github.com/zboralski/galago/internal/accelcfg"
	"github.com/zboralski/galago/internal/arch"
	glog "github.com/zboralski/galago/internal/log"
	"github.com/zboralski/galago/internal/symbolic"
	"github.com/zboralski/galago/internal/symbolic/fake"
	"github.com/zboralski/galago/internal/telemetry"
	"github.com/zboralski/galago/internal/ui/colorize"
)

var (
	steps      uint64
	workers    int
	configPath string
	verbose    bool
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "galago-accel",
		Short: "Run synthetic episodes through the Unicorn acceleration bridge",
		Long: `galago-accel drives a fake in-memory symbolic state through the
concrete-execution accelerator: it maps a NOP sled, hands the state to
the run controller, lets the native emulator execute it, and prints the
resulting telemetry.

This has no dependency on a real symbolic-execution engine; it exists to
exercise internal/accel end to end without one attached.`,
		RunE: runEpisodes,
	}
	rootCmd.Flags().Uint64VarP(&steps, "steps", "n", 64, "instructions to execute per episode")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 1, "concurrent episodes, one OS thread each")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "accel.yml", "tunables file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "run the register round-trip check after setup")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "List supported architectures",
		RunE:  showInfo,
	}
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func showInfo(cmd *cobra.Command, args []string) error {
	for _, id := range []arch.ID{arch.AMD64, arch.X86, arch.MIPS32} {
		cp, ok := arch.Lookup(id)
		if !ok {
			continue
		}
		fmt.Printf("%s\tregisters=%d\tsegment_bases=%v\treuse=%v\n",
			colorize.FuncName(string(id)), len(cp.Registers), cp.HasSegmentBases, cp.ReuseAcrossEpisodes)
	}
	return nil
}

func runEpisodes(cmd *cobra.Command, args []string) error {
	glog.Init(verbose)
	defer glog.L.Sync() //nolint:errcheck

	if !accel.Available() {
		fmt.Fprintln(os.Stderr, colorize.Error("native Unicorn library unavailable"))
		os.Exit(1)
	}

	cfg, err := accelcfg.Load(configPath)
	if err != nil {
		return err
	}
	cfg.Debug = cfg.Debug || debug

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			if err := runOneEpisode(worker, cfg, &mu); err != nil {
				mu.Lock()
				fmt.Fprintln(os.Stderr, colorize.Error(fmt.Sprintf("worker %d: %v", worker, err)))
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return nil
}

// codeBase is where the synthetic program is mapped; an arbitrary
// userspace-looking address well clear of the GDT placeholder region.
const codeBase = 0x400000

func runOneEpisode(worker int, cfg accelcfg.Config, mu *sync.Mutex) error {
	cp, ok := arch.Lookup(arch.AMD64)
	if !ok {
		return fmt.Errorf("no AMD64 capability registered")
	}
	state := fake.NewState(string(arch.AMD64), cp.PCReg, nil)

	if err := state.Mem.MapRegion(codeBase, 0x1000, symbolic.PermRead|symbolic.PermWrite|symbolic.PermExec); err != nil {
		return err
	}
	// A NOP sled: longer than the requested step budget, so the stop
	// point set below ends the run with StopStoppoint, no decode surprises.
	nops := make([]byte, 0x1000)
	for i := range nops {
		nops[i] = 0x90
	}
	if err := state.Mem.WriteBytes(codeBase, nops); err != nil {
		return err
	}
	if err := state.Regs.Write(cp.PCReg, codeBase); err != nil {
		return err
	}
	if err := state.Regs.Write(cp.SPReg, codeBase+0x800); err != nil {
		return err
	}

	plug := plugin.New(plugin.CacheKey(fmt.Sprintf("demo-%d", worker)), cfg.CooldownSettings(), cfg.PolicyThresholds(), cfg.MaxSteps)
	token := pool.NewAffinityToken()

	ep := accel.New(state, plug, accel.Config{
		Token:       token,
		Solver:      state.Slv,
		Checker:     classify.StaticSet{},
		TestingMode: cfg.Testing,
	})

	if err := ep.Setup(); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if cfg.Debug {
		if err := ep.CheckRegisterRoundTrip(); err != nil {
			ep.Destroy() //nolint:errcheck
			return fmt.Errorf("register round-trip: %w", err)
		}
	}
	// Each NOP is one byte, so a stop point steps bytes into the sled
	// gives a deterministic instruction count instead of relying on an
	// unbounded run.
	if err := accel.SetStops(token, []uint64{codeBase + steps}); err != nil {
		ep.Destroy() //nolint:errcheck
		return fmt.Errorf("set stops: %w", err)
	}
	if err := ep.Start(steps); err != nil {
		ep.Destroy() //nolint:errcheck
		return fmt.Errorf("start: %w", err)
	}
	res, err := ep.Finish()
	if err != nil {
		ep.Destroy() //nolint:errcheck
		return fmt.Errorf("finish: %w", err)
	}
	if err := ep.Destroy(); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}

	glog.L.Episode(string(arch.AMD64), res.StopReason, res.Steps, res.Elapsed.Seconds()*1000)

	mu.Lock()
	defer mu.Unlock()
	fmt.Printf("worker %d: %s steps=%d elapsed=%s\n",
		worker, colorize.StopReason(res.StopReason), res.Steps, res.Elapsed)
	for _, ev := range telemetry.FromResult(res) {
		telemetry.DefaultEnricher(ev)
		detail := colorize.Detail(ev.Detail)
		if ev.Tags.Has(telemetry.BasicBlock) {
			// The synthetic program is a NOP sled: every traced basic
			// block executed exactly one "nop", so that's what gets
			// disassembled and syntax-highlighted.
			detail = colorize.Instruction("nop")
		}
		fmt.Printf("  %s %s %s\n", colorize.Address(ev.PC), colorize.Tag(ev.PrimaryTag()), detail)
	}
	return nil
}
