package ops

import (
	"context"

	"github.com/hpungsan/klip/internal/errors"
	"github.com/hpungsan/klip/internal/sweep"
)

// SweepOutput contains the result of an on-demand retention sweep.
type SweepOutput struct {
	sweep.Report
	Remaining int `json:"remaining"`
}

// Sweep runs a retention pass now: age, count cap, then content validity.
func Sweep(ctx context.Context, h History, s Sweeper) (*SweepOutput, error) {
	report, err := s.Sweep(ctx)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &SweepOutput{Report: report, Remaining: h.Len()}, nil
}
