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

package dht

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Querier performs the wire-level FIND_NODE RPC against a peer; the peer
// fabric (peer/) supplies the concrete transport.
type Querier interface {
	FindNode(ctx context.Context, peer Record, target NodeID) ([]Record, error)
}

// Result is the outcome of an iterative lookup.
type Result struct {
	Records  []Record
	Degraded bool
}

type candidateEntry struct {
	rec     Record
	queried bool
}

// Lookup runs the α-parallel iterative lookup for target: each round
// queries the α closest unqueried candidates, merges their answers into
// the shortlist, and terminates when the k closest have all responded,
// two rounds pass without a closer node, or timeout elapses. The final
// set is diversity-filtered before being returned.
func (t *Table) Lookup(ctx context.Context, target NodeID, q Querier, alpha int, timeout time.Duration) (Result, error) {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	k := t.k

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	shortlist := make(map[NodeID]*candidateEntry)
	addCandidate := func(r Record) {
		mu.Lock()
		defer mu.Unlock()
		if r.NodeID == t.self {
			return
		}
		if _, ok := shortlist[r.NodeID]; !ok {
			shortlist[r.NodeID] = &candidateEntry{rec: r}
		}
	}

	for _, r := range t.Closest(target, k) {
		addCandidate(r)
	}

	sorted := func() []*candidateEntry {
		mu.Lock()
		defer mu.Unlock()
		out := make([]*candidateEntry, 0, len(shortlist))
		for _, c := range shortlist {
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool {
			return Less(Distance(out[i].rec.NodeID, target), Distance(out[j].rec.NodeID, target))
		})
		return out
	}

	bestDistance := func() NodeID {
		all := sorted()
		if len(all) == 0 {
			return Distance(NodeID{}, target) // max distance sentinel
		}
		return Distance(all[0].rec.NodeID, target)
	}

	noProgressRounds := 0
	prevBest := bestDistance()

	for {
		select {
		case <-ctx.Done():
			return t.finalizeLookup(target, sorted(), k), nil
		default:
		}

		all := sorted()
		var toQuery []Record
		for _, c := range all {
			if !c.queried {
				toQuery = append(toQuery, c.rec)
			}
			if len(toQuery) >= alpha {
				break
			}
		}
		if len(toQuery) == 0 {
			return t.finalizeLookup(target, sorted(), k), nil
		}

		var wg sync.WaitGroup
		for _, peer := range toQuery {
			peer := peer
			mu.Lock()
			shortlist[peer.NodeID].queried = true
			mu.Unlock()

			wg.Add(1)
			go func() {
				defer wg.Done()
				nodes, err := q.FindNode(ctx, peer, target)
				if err != nil {
					return
				}
				for _, n := range nodes {
					addCandidate(n)
					t.Insert(ctx, n)
				}
			}()
		}
		wg.Wait()

		closest := k
		if len(sorted()) < closest {
			closest = len(sorted())
		}
		if closest > 0 {
			done := true
			for _, c := range sorted()[:closest] {
				if !c.queried {
					done = false
					break
				}
			}
			if done {
				return t.finalizeLookup(target, sorted(), k), nil
			}
		}

		newBest := bestDistance()
		if !Less(newBest, prevBest) {
			noProgressRounds++
		} else {
			noProgressRounds = 0
		}
		prevBest = newBest
		if noProgressRounds >= 2 {
			return t.finalizeLookup(target, sorted(), k), nil
		}
	}
}

func (t *Table) finalizeLookup(target NodeID, entries []*candidateEntry, k int) Result {
	recs := make([]Record, len(entries))
	for i, e := range entries {
		recs[i] = e.rec
	}
	final, degraded := enforceDiversity(recs, k, t.asn)
	return Result{Records: final, Degraded: degraded}
}
