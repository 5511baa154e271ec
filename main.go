package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/faiface/pixel/pixelgl"
	"github.com/pkg/errors"

	"jop/debug"
	"jop/jop"
	"jop/visual"
)

// Command line flags, mirroring the dynamic-config knobs of jop.Config.
var (
	flagCpuCount       int
	flagMaxCycles      uint64
	flagVisual         bool
	flagDebugAddr      string
	flagBurstLen       int
	flagUseStackCache  bool
	flagUseIhlu        bool
	flagFpuMode        string
	flagJumpTable      string
	flagReadLatencyMin int
	flagReadLatencyMax int
	flagRefreshInt     int
	flagRefreshDur     int
	flagNumBreakpoints int
)

func main() {
	cfg := jop.DefaultConfig()
	parseFlags(&cfg)

	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: jop [flags] rom_path ram_path jop_path")
		os.Exit(1)
	}
	romPath, ramPath, jopPath := args[0], args[1], args[2]

	microcode, err := jop.LoadMicrocodeROM(romPath)
	if err != nil {
		log.Println("jop:", err)
		os.Exit(1)
	}

	img, err := jop.LoadImage(jopPath, handlePoolBase, heapBase)
	if err != nil {
		log.Println("jop:", err)
		os.Exit(1)
	}

	cluster := jop.NewCluster(cfg, microcode)
	cluster.LoadImage(img)

	for _, core := range cluster.Cores {
		if err := jop.LoadStackRAMInit(ramPath, core.RAM[:]); err != nil {
			log.Println("jop:", err)
			os.Exit(1)
		}
	}

	if flagDebugAddr != "" {
		runWithDebugServer(cluster)
		return
	}

	if flagVisual {
		runWithPanel(cluster)
		return
	}

	if err := cluster.Run(); err != nil {
		reportFatal(cluster, err)
	}
}

// handlePoolBase/heapBase are the conventional word offsets a simulation
// image is built against. A production harness would thread these through
// from the linker's own output; fixed constants are enough for this
// simulator, which only ever runs images it also built.
const (
	handlePoolBase = 0x1000
	heapBase       = 0x4000
)

func parseFlags(cfg *jop.Config) {
	flag.IntVar(&flagCpuCount, "cpu_count", cfg.CpuCount, "number of cores in the cluster")
	var maxCycles int64
	flag.Int64Var(&maxCycles, "max_cycles", int64(cfg.MaxCycles), "cycles to run before exiting (0 = unbounded)")
	flag.BoolVar(&flagVisual, "visual", false, "open a live debug panel")
	flag.StringVar(&flagDebugAddr, "debug_addr", "", "listen address for the debug protocol engine (empty disables it)")
	flag.IntVar(&flagBurstLen, "burst_len", cfg.BurstLen, "BC_FILL burst length in words (0 = demand fill)")
	flag.BoolVar(&flagUseStackCache, "use_stack_cache", cfg.UseStackCache, "enable the stack cache")
	flag.BoolVar(&flagUseIhlu, "use_ihlu", cfg.UseIhlu, "enable the indirect-handle lock unit")
	flag.StringVar(&flagFpuMode, "fpu_mode", cfg.FpuMode.String(), "off|microcode|hardware")
	flag.StringVar(&flagJumpTable, "jump_table", "simulation", "simulation|simulation_fpu|serial")
	flag.IntVar(&flagReadLatencyMin, "read_latency_min", cfg.ReadLatencyMin, "minimum DRAM read latency in cycles")
	flag.IntVar(&flagReadLatencyMax, "read_latency_max", cfg.ReadLatencyMax, "maximum DRAM read latency in cycles")
	flag.IntVar(&flagRefreshInt, "refresh_interval", cfg.RefreshInterval, "cycles between DRAM refresh stalls")
	flag.IntVar(&flagRefreshDur, "refresh_duration", cfg.RefreshDuration, "length of a DRAM refresh stall in cycles")
	flag.IntVar(&flagNumBreakpoints, "num_breakpoints", cfg.NumBreakpoints, "breakpoint slots reserved per core")

	flag.Parse()

	cfg.CpuCount = flagCpuCount
	cfg.MaxCycles = uint64(maxCycles)
	cfg.BurstLen = flagBurstLen
	cfg.UseStackCache = flagUseStackCache
	cfg.UseIhlu = flagUseIhlu
	cfg.FpuMode = jop.ParseFpuMode(flagFpuMode)
	cfg.JumpTable = jop.ParseJumpTableVariant(flagJumpTable)
	cfg.ReadLatencyMin = flagReadLatencyMin
	cfg.ReadLatencyMax = flagReadLatencyMax
	cfg.RefreshInterval = flagRefreshInt
	cfg.RefreshDuration = flagRefreshDur
	cfg.NumBreakpoints = flagNumBreakpoints
}

// runWithPanel drives the cluster from the main thread's render loop via
// pixelgl.Run, ticking the cluster once per host frame and redrawing the
// panel from its resulting state.
func runWithPanel(cluster *jop.Cluster) {
	pixelgl.Run(func() {
		panel := visual.NewPanel()
		for !panel.Closed() && !cluster.Done() {
			if err := cluster.Tick(); err != nil {
				reportFatal(cluster, err)
			}
			panel.Render(cluster)
		}
	})
}

// runWithDebugServer blocks accepting debug-protocol connections, one at a
// time, and serves each until the peer disconnects.
func runWithDebugServer(cluster *jop.Cluster) {
	ln, err := net.Listen("tcp", flagDebugAddr)
	if err != nil {
		log.Println("jop:", errors.Wrap(err, "opening debug listener"))
		os.Exit(1)
	}
	defer ln.Close()

	log.Println("jop: debug protocol engine listening on", flagDebugAddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Println("jop:", err)
			os.Exit(1)
		}
		engine := debug.NewEngine(conn, cluster)
		if err := engine.Serve(); err != nil {
			log.Println("jop: debug connection closed:", err)
		}
		conn.Close()
	}
}

func reportFatal(cluster *jop.Cluster, err error) {
	log.Println("jop: simulator-fatal error:", err)
	for i := range cluster.Cores {
		log.Println(cluster.Snapshot(i).String())
	}
	os.Exit(2)
}
