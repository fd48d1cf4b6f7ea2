package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/kysee/zk-sha256/types"
)

// Item is the per-input line of a batch summary
type Item struct {
	Index      int    `json:"index"`
	Input      string `json:"input"`
	InputHex   string `json:"inputHex"`
	Status     string `json:"status"`
	Stage      Stage  `json:"stage"`
	Cause      string `json:"cause,omitempty"`
	Category   string `json:"category,omitempty"`
	ArtifactID string `json:"proofId,omitempty"`
	Digest     string `json:"expectedHash,omitempty"`
	HashTx     string `json:"hashTx,omitempty"`
	VerifyTx   string `json:"verifyTx,omitempty"`
	Success    bool   `json:"success"`
}

// Summary reports a batch. ChainID and the contract addresses are filled in by callers that know them.
type Summary struct {
	Network          string `json:"network"`
	ChainID          string `json:"chainId,omitempty"`
	HashContract     string `json:"sha256Address,omitempty"`
	VerifierContract string `json:"verifierAddress,omitempty"`

	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Rejected  int    `json:"rejected"`
	Skipped   int    `json:"skipped"`
	Items     []Item `json:"items"`
}

// OK reports whether every item succeeded
func (s *Summary) OK() bool {
	return s.Succeeded == s.Total
}

func (s *Summary) add(item Item) {
	switch item.Status {
	case OutcomeSucceeded:
		s.Succeeded++
	case OutcomeRejected:
		s.Rejected++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Items = append(s.Items, item)
}

// RunBatch runs inputs one after another. A failing item does not stop the batch unless its
// error would fail every following item too, or ctx is done; the remaining items are then
// reported as skipped and the error is returned along with the summary.
func (o *Orchestrator) RunBatch(ctx context.Context, inputs [][]byte) (*Summary, error) {
	summary := &Summary{
		Network: o.Network,
		Total:   len(inputs),
		Items:   make([]Item, 0, len(inputs)),
	}

	var abort error
	for i, input := range inputs {
		if abort == nil {
			if err := ctx.Err(); err != nil {
				abort = err
			}
		}
		if abort != nil {
			summary.add(Item{
				Index:    i,
				Input:    string(input),
				InputHex: types.HexBytes(input).String(),
				Status:   OutcomeSkipped,
				Cause:    abort.Error(),
			})
			continue
		}

		o.Logger.Info().Int("item", i+1).Int("total", len(inputs)).Msg("processing input")
		run := o.Run(ctx, input)
		summary.add(itemOf(i, run))

		if run.Err == nil {
			continue
		}
		switch {
		case types.IsBatchFatal(run.Err):
			abort = fmt.Errorf("batch aborted at item %d: %w", i, run.Err)
		case errors.Is(run.Err, context.Canceled), errors.Is(run.Err, context.DeadlineExceeded):
			abort = run.Err
		}
	}

	o.Logger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("rejected", summary.Rejected).
		Int("skipped", summary.Skipped).
		Msg("batch finished")
	return summary, abort
}

func itemOf(index int, run *Run) Item {
	item := Item{
		Index:    index,
		Input:    string(run.Input),
		InputHex: types.HexBytes(run.Input).String(),
		Status:   run.Outcome(),
		Stage:    run.Stage,
		Success:  run.Success,
	}
	if run.Err != nil {
		item.Stage, _ = run.FailedStage()
		item.Cause = run.Err.Error()
		item.Category = types.ErrorCategory(run.Err).String()
	}
	if run.Encoded != nil && run.Stage >= StageHashed {
		item.Digest = run.Digest.Hex()
	}
	if run.Artifact != nil {
		item.ArtifactID = run.Artifact.ID
	}
	if run.Verification != nil {
		item.HashTx = run.Verification.HashTx.TxHash
		item.VerifyTx = run.Verification.VerifyTx.TxHash
	}
	return item
}
