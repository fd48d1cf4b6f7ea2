package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kysee/zk-sha256/chain"
	"github.com/kysee/zk-sha256/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

type batchConfig struct {
	file        string
	asJSON      bool
	proveOnly   bool
	metricsAddr string
}

func newBatchCmd(a *app) *cobra.Command {
	cfg := &batchConfig{}

	cmd := &cobra.Command{
		Use:   "batch [input...]",
		Short: "Run the pipeline for several inputs in sequence",
		Long: `Run the pipeline for every input, one after another. A failing input does not stop the
batch; a missing proving key, a proof that fails local verification or an interrupt does,
and the remaining inputs are reported as skipped. The command fails if any input failed or
was rejected.

Inputs come from the arguments or, with --file, one per line.

` + disclosureNote,
		Example: `  zksha batch "hello world" "" "abc"
  zksha batch --file inputs.txt --json --metrics-addr :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, cfg, args)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "", "Read inputs from a file, one per line")
	cmd.Flags().BoolVar(&cfg.asJSON, "json", false, "Print the summary as JSON")
	cmd.Flags().BoolVar(&cfg.proveOnly, "prove-only", false, "Stop every run after local verification")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the batch runs")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, cfg *batchConfig, args []string) error {
	inputs := make([][]byte, 0, len(args))
	for _, arg := range args {
		inputs = append(inputs, []byte(arg))
	}
	if cfg.file != "" {
		lines, err := readLines(cfg.file)
		if err != nil {
			return err
		}
		inputs = append(inputs, lines...)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs given")
	}

	builder, err := a.loadBuilder()
	if err != nil {
		return err
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var m *metrics.Metrics
	if cfg.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		stop := a.serveMetrics(cfg.metricsAddr, reg)
		defer stop()
	}

	var client *chain.Client
	chainID, hashContract, verifierContract := "", "", ""
	if !cfg.proveOnly {
		c, deployment, closeRPC, err := a.newChainClient(cmd.Context(), s)
		if err != nil {
			return err
		}
		defer closeRPC()
		client = c
		chainID = c.ChainID().String()
		hashContract, verifierContract = deployment.HashContract, deployment.VerifierContract
	}

	summary, batchErr := a.orchestrator(builder, client, s, m).RunBatch(cmd.Context(), inputs)
	summary.ChainID = chainID
	summary.HashContract = hashContract
	summary.VerifierContract = verifierContract

	if cfg.asJSON {
		err = printJSON(cmd.OutOrStdout(), summary)
	} else {
		err = printSummary(cmd.OutOrStdout(), summary)
	}
	if err != nil {
		return err
	}

	switch {
	case batchErr != nil:
		return batchErr
	case !summary.OK():
		return fmt.Errorf("%d of %d inputs failed, %d rejected, %d skipped",
			summary.Failed, summary.Total, summary.Rejected, summary.Skipped)
	}
	return nil
}

// serveMetrics exposes reg on addr until the returned func is called
func (a *app) serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// readLines returns every line of path as an input; blank lines are empty inputs
func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inputs: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, append([]byte{}, scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inputs: %w", err)
	}
	return lines, nil
}
