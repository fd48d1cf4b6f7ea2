package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kysee/zk-sha256/pipeline"
	"github.com/kysee/zk-sha256/types"
	"github.com/pterm/pterm"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRun renders one run as a two column table
func printRun(w io.Writer, run *pipeline.Run) error {
	data := pterm.TableData{
		{"Input", strconv.Quote(string(run.Input))},
		{"Stage", run.Stage.String()},
		{"Outcome", run.Outcome()},
	}
	if run.Stage >= pipeline.StageHashed {
		data = append(data, []string{"Digest", run.Digest.Hex()})
	}
	if run.Artifact != nil {
		data = append(data, []string{"Proof", run.Artifact.ID})
	}
	if v := run.Verification; v != nil {
		data = append(data,
			[]string{"Hash tx", txCell(v.HashTx)},
			[]string{"Verify tx", txCell(v.VerifyTx)},
			[]string{"Verified", strconv.FormatBool(v.Success)},
		)
	}
	if run.Err != nil {
		stage, _ := run.FailedStage()
		data = append(data,
			[]string{"Failed at", stage.String()},
			[]string{"Category", types.ErrorCategory(run.Err).String()},
			[]string{"Cause", run.Err.Error()},
		)
	}
	return pterm.DefaultTable.WithHasHeader(false).WithWriter(w).WithData(data).Render()
}

func txCell(tx types.TxOutcome) string {
	switch {
	case tx.TxHash == "" && tx.Error == "":
		return "-"
	case tx.Error != "":
		return fmt.Sprintf("%s (%s)", tx.TxHash, tx.Error)
	default:
		return fmt.Sprintf("%s block %d gas %d", tx.TxHash, tx.BlockNumber, tx.GasUsed)
	}
}

// printSummary renders a batch summary, one row per item followed by the totals
func printSummary(w io.Writer, s *pipeline.Summary) error {
	data := pterm.TableData{{"#", "Input", "Status", "Stage", "Digest", "Cause"}}
	for _, item := range s.Items {
		data = append(data, []string{
			strconv.Itoa(item.Index + 1),
			strconv.Quote(item.Input),
			item.Status,
			item.Stage.String(),
			shorten(item.Digest),
			item.Cause,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader(true).WithWriter(w).WithData(data).Render(); err != nil {
		return err
	}

	totals := pterm.TableData{
		{"Network", s.Network},
		{"Chain id", s.ChainID},
		{"Total", strconv.Itoa(s.Total)},
		{"Succeeded", strconv.Itoa(s.Succeeded)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Rejected", strconv.Itoa(s.Rejected)},
		{"Skipped", strconv.Itoa(s.Skipped)},
	}
	return pterm.DefaultTable.WithHasHeader(false).WithWriter(w).WithData(totals).Render()
}

func shorten(digest string) string {
	if len(digest) <= 18 {
		return digest
	}
	return digest[:10] + "…" + digest[len(digest)-6:]
}
