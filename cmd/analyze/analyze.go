// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package analyze is a subcommand of the root command. It detects Spectre-v4
// speculative store-bypass leakage in one or more functions of a compiled
// IR module.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"aegleak/internal/aeg"
	"aegleak/internal/alias"
	"aegleak/internal/cfg"
	"aegleak/internal/config"
	"aegleak/internal/dataflow"
	"aegleak/internal/ir"
	"aegleak/internal/leakage"
	"aegleak/internal/metrics"
	"aegleak/internal/monitorproto"
	"aegleak/internal/progress"
	"aegleak/internal/report"
	"aegleak/internal/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer formats large counts with thousands separators in the final
// summary line, e.g. "analyzed 12,482 functions".
var printer = message.NewPrinter(language.English)

const cmdName = "analyze"

var examples = []string{
	fmt.Sprintf("  Analyze one module:                  $ aegleak %s --input module.ir", cmdName),
	fmt.Sprintf("  Wider reorder buffer and depth:      $ aegleak %s --input module.ir --rob-size 64 --num-specs 3", cmdName),
	fmt.Sprintf("  Existential witnesses, fast mode:    $ aegleak %s --input module.ir --fast-mode --concrete-sourced-stores=false", cmdName),
	fmt.Sprintf("  Report to a monitor and export xlsx: $ aegleak %s --input module.ir --monitor /tmp/aegleak.sock --xlsx", cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Detect Spectre-v4 leakage in an IR module",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagInput                 string
	flagRobSize               uint
	flagNumSpecs              uint
	flagOutputDir             string
	flagFastMode              bool
	flagBatchMode             bool
	flagWitnessExecutions     int
	flagConcreteSourcedStores bool
	flagConfig                string
	flagMonitor               string
	flagMetricsAddr           string
	flagXLSX                  bool
	flagJobs                  int

	// flagRunFunction is set only on the re-invocation os/exec spawns to
	// analyze a single function; it is hidden from help
	// because it is not a user-facing flag.
	flagRunFunction string
)

const (
	flagInputName                 = "input"
	flagRobSizeName               = "rob-size"
	flagNumSpecsName              = "num-specs"
	flagOutputDirName             = "output-dir"
	flagFastModeName              = "fast-mode"
	flagBatchModeName             = "batch-mode"
	flagWitnessExecutionsName     = "witness-executions"
	flagConcreteSourcedStoresName = "concrete-sourced-stores"
	flagConfigName                = "config"
	flagMonitorName               = "monitor"
	flagMetricsAddrName           = "metrics-addr"
	flagXLSXName                  = "xlsx"
	flagJobsName                  = "jobs"
	flagRunFunctionName           = "run-function"
)

func init() {
	registerFlags()
}

// registerFlags binds Cmd's flags; split out from init so tests can call
// Cmd.ResetFlags() followed by registerFlags() to get a flag set with every
// Changed() bit cleared between cases.
func registerFlags() {
	Cmd.Flags().StringVar(&flagInput, flagInputName, "", "path to the IR module to analyze (required)")
	Cmd.Flags().UintVar(&flagRobSize, flagRobSizeName, 0, "reorder-buffer size bound (at least 1); overrides the config/default value when given")
	Cmd.Flags().UintVar(&flagNumSpecs, flagNumSpecsName, 0, "speculation depth bound (at least 1); overrides the config/default value when given")
	Cmd.Flags().StringVar(&flagOutputDir, flagOutputDirName, "", "directory for leakage.txt/transmitters.txt/*.dot/summary.xlsx")
	Cmd.Flags().BoolVar(&flagFastMode, flagFastModeName, false, "use the fast (single-witness-per-transmitter) traceback budget")
	Cmd.Flags().BoolVar(&flagBatchMode, flagBatchModeName, false, "append to leakage.txt instead of truncating it")
	Cmd.Flags().IntVar(&flagWitnessExecutions, flagWitnessExecutionsName, 0, "cap the number of witnesses collected per function; 0 is unbounded")
	Cmd.Flags().BoolVar(&flagConcreteSourcedStores, flagConcreteSourcedStoresName, true, "name a concrete bypassed-from store in each witness")
	Cmd.Flags().StringVar(&flagConfig, flagConfigName, "", "YAML file overriding the defaults (see the config subcommand)")
	Cmd.Flags().StringVar(&flagMonitor, flagMonitorName, "", "Unix socket path of a monitor process to report progress to")
	Cmd.Flags().StringVar(&flagMetricsAddr, flagMetricsAddrName, "", "address to expose Prometheus metrics on, e.g. 127.0.0.1:9090")
	Cmd.Flags().BoolVar(&flagXLSX, flagXLSXName, false, "also write a summary.xlsx workbook")
	Cmd.Flags().IntVar(&flagJobs, flagJobsName, 0, "worker pool size; 0 uses runtime.NumCPU()")

	Cmd.Flags().StringVar(&flagRunFunction, flagRunFunctionName, "", "")
	_ = Cmd.Flags().MarkHidden(flagRunFunctionName)
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagInput == "" {
		return errors.Errorf("--%s is required", flagInputName)
	}
	abs, err := util.AbsPath(flagInput)
	if err != nil {
		return errors.Wrapf(err, "--%s", flagInputName)
	}
	flagInput = abs
	if _, err := os.Stat(flagInput); err != nil {
		return errors.Wrapf(err, "--%s", flagInputName)
	}
	return nil
}

// resolvedConfig starts from the defaults, replaces them with the optional
// --config YAML file when one is given, then applies any flags the user
// actually set (flags take precedence, since they
// are the more specific override).
func resolvedConfig(cmd *cobra.Command) (config.Config, error) {
	conf := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return config.Config{}, err
		}
		conf = loaded
	}
	flags := cmd.Flags()
	if flags.Changed(flagRobSizeName) {
		conf.RobSize = flagRobSize
	}
	if flags.Changed(flagNumSpecsName) {
		conf.NumSpecs = flagNumSpecs
	}
	if flags.Changed(flagOutputDirName) {
		conf.OutputDir = flagOutputDir
	}
	if flags.Changed(flagFastModeName) {
		conf.FastMode = flagFastMode
	}
	if flags.Changed(flagBatchModeName) {
		conf.BatchMode = flagBatchMode
	}
	if flags.Changed(flagWitnessExecutionsName) {
		conf.WitnessExecutions = flagWitnessExecutions
	}
	if flags.Changed(flagConcreteSourcedStoresName) {
		conf.ConcreteSourcedStores = flagConcreteSourcedStores
	}
	if flags.Changed(flagJobsName) {
		conf.Jobs = flagJobs
	}
	if flags.Changed(flagMonitorName) {
		conf.MonitorSocket = flagMonitor
	}
	if flags.Changed(flagMetricsAddrName) {
		conf.MetricsAddr = flagMetricsAddr
	}
	if flags.Changed(flagXLSXName) {
		conf.XLSX = flagXLSX
	}
	if conf.OutputDir == "" {
		conf.OutputDir = "."
	}
	abs, err := util.AbsPath(conf.OutputDir)
	if err != nil {
		return config.Config{}, errors.Wrapf(err, "--%s", flagOutputDirName)
	}
	conf.OutputDir = abs
	if err := conf.Validate(); err != nil {
		return config.Config{}, err
	}
	return conf, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	conf, err := resolvedConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(conf.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, "analyze: create output dir")
	}

	if flagRunFunction != "" {
		return runWorker(conf, flagRunFunction)
	}
	return runParent(cmd.Context(), conf)
}

// runParent discovers the module's functions, resets the append/truncate
// outputs once for the whole run, then drives a bounded worker pool of
// os/exec children, one per function.
func runParent(ctx context.Context, conf config.Config) error {
	f, err := os.Open(flagInput)
	if err != nil {
		return errors.Wrap(err, "analyze: open input")
	}
	fns, err := ir.ParseModuleSet(f)
	_ = f.Close()
	if err != nil {
		return errors.Wrap(err, "analyze: parse module")
	}

	rw := report.Writer{OutputDir: conf.OutputDir, Batch: conf.BatchMode}
	if err := rw.ResetLeakage(); err != nil {
		return err
	}

	var collector *metrics.Collector
	var metricsServer *metrics.Server
	if conf.MetricsAddr != "" {
		collector = metrics.NewCollector()
		metricsServer = metrics.StartServer(conf.MetricsAddr, collector)
		defer func() {
			_ = metricsServer.Shutdown(ctx)
		}()
	}

	jobs := conf.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	spinner := progress.NewMultiSpinner()
	for _, fn := range fns {
		_ = spinner.AddSpinner(fn.Name)
	}
	spinner.Start()
	defer spinner.Finish()

	var (
		mu           sync.Mutex
		allRecords   []report.WitnessRecord
		leakCount    int
		firstErr     error
		wg           sync.WaitGroup
		sem          = make(chan struct{}, jobs)
		functionsRun []string
	)
	for _, fn := range fns {
		functionsRun = append(functionsRun, fn.Name)
	}

	for _, fn := range fns {
		fn := fn
		sem <- struct{}{}
		wg.Add(1)
		_ = spinner.Status(fn.Name, "analyzing")
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			records, n, err := runChild(conf, fn.Name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				_ = spinner.Status(fn.Name, "failed")
				slog.Error("function analysis failed", slog.String("function", fn.Name), slog.String("error", err.Error()))
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			_ = spinner.Status(fn.Name, fmt.Sprintf("done (%d witnesses)", n))
			allRecords = append(allRecords, records...)
			leakCount += n
			if collector != nil {
				collector.FunctionsAnalyzed.Inc()
				for _, rec := range records {
					collector.WitnessesFound.WithLabelValues(rec.Kind).Inc()
				}
			}
		}()
	}
	wg.Wait()

	if conf.MonitorSocket != "" {
		client := monitorproto.Dial(conf.MonitorSocket)
		client.FunctionsAnalyzed(functionsRun)
		_ = client.Close()
	}

	if conf.XLSX {
		if err := rw.WriteXlsxSummary(allRecords); err != nil {
			return err
		}
	}

	fmt.Println(printer.Sprintf("analyzed %d functions, found %d leakage witnesses", len(fns), leakCount))
	slog.Info("analysis complete", slog.Int("functions", len(fns)), slog.Int("leaks", leakCount))
	return firstErr
}

// runChild re-invokes the current binary in worker mode for one function,
// driving an external process and parsing its captured stdout, with the
// binary re-exec'ing itself instead of a separate tool.
func runChild(conf config.Config, function string) ([]report.WitnessRecord, int, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, 0, errors.Wrap(err, "analyze: resolve executable path")
	}
	args := []string{
		cmdName,
		"--" + flagInputName + "=" + flagInput,
		"--" + flagRobSizeName + "=" + strconv.FormatUint(uint64(conf.RobSize), 10),
		"--" + flagNumSpecsName + "=" + strconv.FormatUint(uint64(conf.NumSpecs), 10),
		"--" + flagOutputDirName + "=" + conf.OutputDir,
		"--" + flagFastModeName + "=" + strconv.FormatBool(conf.FastMode),
		"--" + flagBatchModeName + "=true",
		"--" + flagWitnessExecutionsName + "=" + strconv.Itoa(conf.WitnessExecutions),
		"--" + flagConcreteSourcedStoresName + "=" + strconv.FormatBool(conf.ConcreteSourcedStores),
		"--" + flagMonitorName + "=" + conf.MonitorSocket,
		"--" + flagRunFunctionName + "=" + function,
	}
	child := exec.Command(exe, args...) // #nosec G204 -- re-invokes this same trusted binary
	var stdout strings.Builder
	child.Stdout = &stdout
	child.Stderr = os.Stderr
	if err := child.Run(); err != nil {
		return nil, 0, errors.Wrapf(err, "analyze: worker for function %q", function)
	}
	records, err := report.DecodeWitnessRecords(strings.NewReader(stdout.String()))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "analyze: decode worker output for %q", function)
	}
	return records, len(records), nil
}

// runWorker is the body that executes inside a child process spawned by
// runChild: build the pipeline for exactly one function, run the Spectre-v4
// detector, write the shared text/dot reports, and print a JSON summary for
// the parent to aggregate into summary.xlsx and the metrics counters.
func runWorker(conf config.Config, function string) error {
	f, err := os.Open(flagInput)
	if err != nil {
		return errors.Wrap(err, "analyze: open input")
	}
	defer f.Close()
	fn, err := ir.ParseFunction(f, function)
	if err != nil {
		return err
	}

	client := monitorproto.Dial(conf.MonitorSocket)
	defer func() { _ = client.Close() }()
	client.FunctionStarted(function)

	c, err := cfg.Build(fn)
	if err != nil {
		client.FunctionCompleted(function, 0, err)
		return err
	}
	exp, err := cfg.Construct(c, conf.NumSpecs, conf.RobSize)
	if err != nil {
		client.FunctionCompleted(function, 0, err)
		return err
	}
	client.FunctionStep(function, "cfg-expanded")

	deps := aeg.Deps{
		Addr: dataflow.AddressDependencyAnalysis(fn),
		Data: dataflow.DataDependencyAnalysis(fn),
		Ctrl: dataflow.ControlDependencyAnalysis(fn),
	}
	g, err := aeg.Construct(exp, deps, aeg.Options{Oracle: alias.DefaultOracle{}})
	if err != nil {
		client.FunctionCompleted(function, 0, err)
		return errors.Wrap(err, "analyze: construct AEG")
	}
	client.FunctionStep(function, "aeg-constructed")

	d := &leakage.Detector{
		Graph:                 g,
		Mode:                  conf.LeakageMode(),
		WitnessExecutions:     conf.WitnessExecutions,
		ConcreteSourcedStores: conf.ConcreteSourcedStores,
	}
	witnesses, err := d.RunSpectreV4()
	if err != nil {
		client.FunctionCompleted(function, len(witnesses), err)
		return errors.Wrap(err, "analyze: run detector")
	}

	rw := report.Writer{OutputDir: conf.OutputDir, Batch: true}
	if err := rw.WriteLeakage(witnesses, g); err != nil {
		return err
	}
	if err := rw.WriteTransmitters(witnesses, g); err != nil {
		return err
	}
	for _, w := range witnesses {
		if err := rw.WriteDotWitness(function, w, g); err != nil {
			return err
		}
	}

	client.FunctionCompleted(function, len(witnesses), nil)

	records := report.RecordsFromWitnesses(function, g, witnesses)
	return report.EncodeWitnessRecords(os.Stdout, records)
}
