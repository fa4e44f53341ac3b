// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package onion

import (
	"context"
	"math/rand"
	"time"
)

// CellSink receives cover cells addressed to a circuit's first hop; a
// real transport implements this to hand cells off over the wire.
type CellSink interface {
	SendCell(ctx context.Context, circuitID string, cell []byte) error
}

// CoverEmitter drives Poisson-rate dummy-cell traffic for one circuit so
// an observer cannot distinguish idle circuits from active ones by
// inter-cell timing alone.
type CoverEmitter struct {
	circuit *Circuit
	sink    CellSink
	lambda  float64 // mean cells per second

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoverEmitter starts emitting dummy cells on circuit at a Poisson
// rate with mean lambda cells/sec until Stop is called or the circuit
// tears down.
func NewCoverEmitter(ctx context.Context, c *Circuit, sink CellSink, lambda float64) *CoverEmitter {
	if lambda <= 0 {
		lambda = 1.0
	}
	cctx, cancel := context.WithCancel(ctx)
	e := &CoverEmitter{
		circuit: c,
		sink:    sink,
		lambda:  lambda,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go e.run(cctx)
	return e
}

func (e *CoverEmitter) run(ctx context.Context) {
	defer close(e.done)
	for {
		// Poisson inter-arrival: exponential(lambda) seconds.
		wait := time.Duration(rand.ExpFloat64() / e.lambda * float64(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if e.circuit.State() == StateTeardown {
			return
		}
		cell, err := e.circuit.SendDummy()
		if err != nil {
			continue
		}
		_ = e.sink.SendCell(ctx, e.circuit.ID(), cell)
	}
}

// Stop halts the emitter and waits for its goroutine to exit.
func (e *CoverEmitter) Stop() {
	e.cancel()
	<-e.done
}
