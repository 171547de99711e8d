// cmd/sentrajit/main.go
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"

	"sentrajit/internal/codegen/interp"
	"sentrajit/internal/config"
	"sentrajit/internal/engine"
	"sentrajit/internal/ir"
	"sentrajit/internal/types"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	switch args[0] {
	case "--version", "-v", "version":
		fmt.Printf("sentrajit v%s — tiered JIT compilation core\n", version)
	case "--help", "-h", "help":
		showUsage()
	case "demo":
		if err := runDemo(); err != nil {
			log.Fatalf("demo failed: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

// heading bolds s with an ANSI escape when stdout is a real terminal,
// and leaves it plain when piped or redirected.
func heading(s string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func showUsage() {
	fmt.Println(heading("sentrajit - tiered JIT compilation core"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sentrajit demo       Compile and run a small sample function through the full pipeline")
	fmt.Println("  sentrajit version    Show version information")
	fmt.Println("  sentrajit help       Show this message")
}

// runDemo builds a small sample graph by hand (this module never parses
// source, per its scope) and drives it through the profiler, the
// optimizer, the orchestrator and the interpreter emitter end to end, so
// the wiring between packages is exercised by something runnable.
func runDemo() error {
	cfg := config.Default()
	e, err := engine.New(engine.Options{Config: cfg, CachePath: ":memory:"})
	if err != nil {
		return fmt.Errorf("engine.New: %w", err)
	}
	defer e.Close()

	const functionID = 1
	g := buildSumOfSquaresGraph(functionID)
	e.RegisterCallee(functionID, g)

	for i := 0; i < cfg.HotFunctionThreshold+1; i++ {
		e.Profiler.RecordType(functionID, 0, types.Int32, 0)
	}

	start := time.Now()
	record, err := e.Orchestrator.OptimizeFunction(functionID, e.Orchestrator.DecideTier(functionID))
	if err != nil {
		return fmt.Errorf("OptimizeFunction: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("compiled function %d at tier %s in %s (code size %s)\n",
		record.FunctionID, record.Level, elapsed, humanize.Bytes(uint64(record.CodeSize)))
	fmt.Printf("applied optimizations: %v\n", record.AppliedOptimizations)

	obj, ok := record.Code.(*interp.CodeObject)
	if !ok {
		return fmt.Errorf("unexpected code object type %T", record.Code)
	}

	result, err := obj.Run([]interface{}{int32(5)})
	if err != nil {
		return fmt.Errorf("running compiled code: %w", err)
	}
	fmt.Printf("f(5) = %v\n", result)

	fmt.Println("graph after optimization:")
	fmt.Printf("%# v\n", pretty.Formatter(summarize(g)))
	return nil
}

type graphSummary struct {
	Name   string
	Blocks int
	Nodes  int
}

func summarize(g *ir.Graph) graphSummary {
	return graphSummary{Name: g.Name, Blocks: len(g.Blocks), Nodes: len(g.AllNodes())}
}

// buildSumOfSquaresGraph builds `function f(n) { return n * n + n }`
// directly as IR, standing in for what a bytecode-to-IR translator would
// otherwise produce from interpreter bytecode.
func buildSumOfSquaresGraph(functionID uint32) *ir.Graph {
	g := ir.NewGraph(functionID, "sumOfSquares")
	n := g.CreateParameter(0, "n", types.Int32)
	square := g.CreateBinaryOp(g.Entry, ir.OpMul, n, n, types.Int32)
	sum := g.CreateBinaryOp(g.Entry, ir.OpAdd, square, n, types.Int32)
	g.CreateReturn(g.Entry, sum, types.Int32)
	return g
}
