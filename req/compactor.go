/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package req

import (
	"slices"
	"sort"

	"github.com/quantilekit/sketches-go/internal"
)

// compactor is one level of the sketch. Each buffered value logically
// represents weight = 2^level original stream items. The buffer is kept
// sorted ascending at all times; it may exceed capacity only transiently
// between an insertion and the compaction pass that follows it.
type compactor struct {
	buf            []float64
	level          uint8
	capacity       uint32
	parity         bool // retain odd-indexed survivors on the next compaction
	numCompactions uint32
}

func newCompactor(level uint8, capacity uint32, parity bool) *compactor {
	return &compactor{
		buf:      make([]float64, 0, capacity+1),
		level:    level,
		capacity: capacity,
		parity:   parity,
	}
}

func (c *compactor) weight() uint64 {
	return uint64(1) << c.level
}

func (c *compactor) isOverCapacity() bool {
	return uint32(len(c.buf)) > c.capacity
}

// insert places a single value into the buffer, preserving sort order.
func (c *compactor) insert(value float64) {
	i := sort.SearchFloat64s(c.buf, value)
	c.buf = slices.Insert(c.buf, i, value)
}

// mergeSorted folds a sorted ascending slice into the buffer.
func (c *compactor) mergeSorted(sorted []float64) {
	if len(sorted) == 0 {
		return
	}
	if len(c.buf) == 0 {
		c.buf = append(c.buf, sorted...)
		return
	}
	c.buf = internal.MergeSorted(c.buf, sorted)
}

// compact halves the part of the buffer farthest from the protected tail and
// returns the promoted survivors, sorted ascending, each now standing for
// twice this level's weight. The safety region of protect items adjacent to
// the protected extreme is never touched, which is what propagates that
// extreme without error. The parity bit selects which residue class survives
// and alternates per compaction of this level so neither class is favored.
func (c *compactor) compact(mode Mode, protect int) []float64 {
	if len(c.buf) <= protect {
		return nil
	}
	var region []float64
	if mode == ModeHighRankAccuracy {
		// protect the values adjacent to the maximum
		region = c.buf[:len(c.buf)-protect]
	} else {
		// protect the values adjacent to the minimum
		region = c.buf[protect:]
	}
	offset := 0
	if c.parity {
		offset = 1
	}
	promoted := make([]float64, 0, (len(region)+1)/2)
	for i := offset; i < len(region); i += 2 {
		promoted = append(promoted, region[i])
	}
	if mode == ModeHighRankAccuracy {
		kept := copy(c.buf, c.buf[len(c.buf)-protect:])
		c.buf = c.buf[:kept]
	} else {
		c.buf = c.buf[:protect]
	}
	c.parity = !c.parity
	c.numCompactions++
	return promoted
}
