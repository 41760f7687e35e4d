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
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompactor_InsertKeepsSorted(t *testing.T) {
	c := newCompactor(0, 8, false)
	for _, v := range []float64{5, 1, 3, 2, 4, 2} {
		c.insert(v)
	}
	assert.Equal(t, []float64{1, 2, 2, 3, 4, 5}, c.buf)
	assert.True(t, sort.Float64sAreSorted(c.buf))
}

func TestCompactor_MergeSorted(t *testing.T) {
	c := newCompactor(0, 8, false)
	c.mergeSorted([]float64{2, 4, 6})
	c.mergeSorted([]float64{1, 3, 5, 7})
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, c.buf)
	c.mergeSorted(nil)
	assert.Equal(t, 7, len(c.buf))
}

func TestCompactor_Weight(t *testing.T) {
	assert.Equal(t, uint64(1), newCompactor(0, 8, false).weight())
	assert.Equal(t, uint64(2), newCompactor(1, 8, false).weight())
	assert.Equal(t, uint64(1024), newCompactor(10, 8, false).weight())
}

func TestCompactor_CompactHra(t *testing.T) {
	// 1..8 with protect=4: the top four values must survive untouched and
	// every other value of the low half is promoted
	c := newCompactor(0, 8, false)
	c.mergeSorted([]float64{1, 2, 3, 4, 5, 6, 7, 8})

	promoted := c.compact(ModeHighRankAccuracy, 4)
	assert.Equal(t, []float64{1, 3}, promoted)
	assert.Equal(t, []float64{5, 6, 7, 8}, c.buf)
	assert.Equal(t, uint32(1), c.numCompactions)
	assert.True(t, c.parity)

	// next compaction of the same level picks the other residue class
	c.mergeSorted([]float64{1, 2, 3, 4})
	promoted = c.compact(ModeHighRankAccuracy, 4)
	assert.Equal(t, []float64{2, 4}, promoted)
	assert.Equal(t, []float64{5, 6, 7, 8}, c.buf)
	assert.False(t, c.parity)
}

func TestCompactor_CompactLra(t *testing.T) {
	c := newCompactor(0, 8, false)
	c.mergeSorted([]float64{1, 2, 3, 4, 5, 6, 7, 8})

	promoted := c.compact(ModeLowRankAccuracy, 4)
	assert.Equal(t, []float64{5, 7}, promoted)
	assert.Equal(t, []float64{1, 2, 3, 4}, c.buf)

	c.mergeSorted([]float64{5, 6, 7, 8})
	promoted = c.compact(ModeLowRankAccuracy, 4)
	assert.Equal(t, []float64{6, 8}, promoted)
	assert.Equal(t, []float64{1, 2, 3, 4}, c.buf)
}

func TestCompactor_CompactWithinProtect(t *testing.T) {
	// nothing outside the safety region, so nothing to promote
	c := newCompactor(0, 8, false)
	c.mergeSorted([]float64{1, 2, 3})
	promoted := c.compact(ModeHighRankAccuracy, 4)
	assert.Nil(t, promoted)
	assert.Equal(t, []float64{1, 2, 3}, c.buf)
	assert.Equal(t, uint32(0), c.numCompactions)
}

func TestCompactor_OverCapacity(t *testing.T) {
	c := newCompactor(0, 4, false)
	for i := 1; i <= 4; i++ {
		c.insert(float64(i))
	}
	assert.False(t, c.isOverCapacity())
	c.insert(5)
	assert.True(t, c.isOverCapacity())
	c.compact(ModeHighRankAccuracy, 2)
	assert.False(t, c.isOverCapacity())
}

func TestCompactor_PromotedIsSorted(t *testing.T) {
	c := newCompactor(0, 16, true)
	for i := 16; i >= 1; i-- {
		c.insert(float64(i))
	}
	promoted := c.compact(ModeHighRankAccuracy, 4)
	assert.True(t, sort.Float64sAreSorted(promoted))
	assert.Equal(t, 6, len(promoted))
	assert.True(t, sort.Float64sAreSorted(c.buf))
}
