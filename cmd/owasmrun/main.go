// Command owasmrun is a small demonstration CLI for the owasm engine: it
// compiles a WASM oracle script and runs its prepare or execute phase
// against an Env fixture described by a YAML file.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	owasm "github.com/ODIN-PROTOCOL/owasm-go"
	"github.com/ODIN-PROTOCOL/owasm-go/cache"
)

var rootCmd = &cobra.Command{
	Use:   "owasmrun",
	Short: "Compile and run owasm oracle scripts outside a validator",
}

var (
	flagEnvFile   string
	flagGasLimit  uint64
	flagIsPrepare bool
)

var runCmd = &cobra.Command{
	Use:   "run <script.wasm>",
	Short: "Compile a script and invoke its prepare or execute phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	runCmd.Flags().StringVar(&flagEnvFile, "env", "", "path to a YAML Env fixture (required)")
	runCmd.Flags().Uint64Var(&flagGasLimit, "gas-limit", 2_500_000_000_000, "gas limit for this invocation")
	runCmd.Flags().BoolVar(&flagIsPrepare, "prepare", false, "invoke the prepare phase instead of execute")
	_ = runCmd.MarkFlagRequired("env")

	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	wasmPath := args[0]
	requestID := uuid.New().String()

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", wasmPath, err)
	}

	envBytes, err := os.ReadFile(flagEnvFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", flagEnvFile, err)
	}
	var fixture fixtureEnv
	if err := yaml.Unmarshal(envBytes, &fixture); err != nil {
		return fmt.Errorf("parsing %s: %w", flagEnvFile, err)
	}
	fixture.IsPrepare = flagIsPrepare

	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()

	cfg := owasm.DefaultConfig()
	store, err := owasm.NewStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer store.Close(ctx)

	instanceCache, err := cache.New(cfg.CacheCapacity, logger)
	if err != nil {
		return fmt.Errorf("creating cache: %w", err)
	}
	defer instanceCache.Close(ctx)

	artifact, err := store.Compile(ctx, wasmPath, wasmBytes)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	gasUsed, err := owasm.Run(ctx, instanceCache, store, artifact, flagGasLimit, flagIsPrepare, &fixture)
	if err != nil {
		return fmt.Errorf("run (request %s): %w", requestID, err)
	}

	phase := "execute"
	if flagIsPrepare {
		phase = "prepare"
	}
	fmt.Printf("request %s: %s ok, gas_used=%d\n", requestID, phase, gasUsed)
	if len(fixture.returnData) > 0 {
		fmt.Printf("return data: %x\n", fixture.returnData)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
