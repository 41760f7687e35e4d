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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAccuracy_HraTailRank feeds random permutations of 1..n and checks that
// the estimated value at a high rank lands within the sketch's own three
// standard deviation rank bounds. Individual trials may miss; the test
// requires the advertised coverage over many trials.
func TestAccuracy_HraTailRank(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test skipped in short mode")
	}
	const (
		k         = uint16(128)
		n         = 100000
		numTrials = 200
		rank      = 0.99
	)
	r := rand.New(rand.NewSource(11))
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}

	misses := 0
	for trial := 0; trial < numTrials; trial++ {
		r.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })
		sketch, err := NewSketch(k, ModeHighRankAccuracy)
		assert.NoError(t, err)
		assert.NoError(t, sketch.UpdateBatch(values))

		q, err := sketch.GetQuantile(rank, true)
		assert.NoError(t, err)
		// the stream is 1..n, so the true normalized rank of the returned
		// value is the value itself over n
		trueRank := q / float64(n)
		lb := sketch.GetRankLowerBound(rank, 3)
		ub := sketch.GetRankUpperBound(rank, 3)
		if trueRank < lb || trueRank > ub {
			misses++
			t.Logf("trial %d: true rank %f outside [%f, %f]", trial, trueRank, lb, ub)
		}
	}
	// 3 standard deviations promise ~99.7% coverage; allow 5% misses
	assert.LessOrEqual(t, misses, numTrials/20, "%d of %d trials missed", misses, numTrials)
}

// TestAccuracy_ErrorShrinksTowardTail checks the defining property of the
// sketch: for a fixed stream the observed rank error decays as the queried
// rank approaches the accurate end.
func TestAccuracy_ErrorShrinksTowardTail(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test skipped in short mode")
	}
	const (
		k         = uint16(64)
		n         = 100000
		numTrials = 50
	)
	ranks := []float64{0.5, 0.9, 0.99, 0.999}
	r := rand.New(rand.NewSource(12))
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}

	sumAbsErr := make([]float64, len(ranks))
	for trial := 0; trial < numTrials; trial++ {
		r.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })
		sketch, err := NewSketch(k, ModeHighRankAccuracy)
		assert.NoError(t, err)
		assert.NoError(t, sketch.UpdateBatch(values))
		for i, rank := range ranks {
			q, err := sketch.GetQuantile(rank, true)
			assert.NoError(t, err)
			trueRank := q / float64(n)
			err2 := trueRank - rank
			if err2 < 0 {
				err2 = -err2
			}
			sumAbsErr[i] += err2
		}
	}
	for i := 1; i < len(ranks); i++ {
		assert.LessOrEqual(t, sumAbsErr[i], sumAbsErr[i-1],
			"mean error at rank %f should not exceed mean error at rank %f",
			ranks[i], ranks[i-1])
	}
	for i, rank := range ranks {
		t.Logf("rank %f: mean abs rank error %e", rank, sumAbsErr[i]/numTrials)
	}
}

// TestAccuracy_LraMirrorsHra checks that LRA mode has the symmetric
// behavior: tight near rank zero.
func TestAccuracy_LraMirrorsHra(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test skipped in short mode")
	}
	const (
		k         = uint16(128)
		n         = 100000
		numTrials = 100
		rank      = 0.01
	)
	r := rand.New(rand.NewSource(13))
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i + 1)
	}

	misses := 0
	for trial := 0; trial < numTrials; trial++ {
		r.Shuffle(n, func(i, j int) { values[i], values[j] = values[j], values[i] })
		sketch, err := NewSketch(k, ModeLowRankAccuracy)
		assert.NoError(t, err)
		assert.NoError(t, sketch.UpdateBatch(values))

		q, err := sketch.GetQuantile(rank, true)
		assert.NoError(t, err)
		trueRank := q / float64(n)
		lb := sketch.GetRankLowerBound(rank, 3)
		ub := sketch.GetRankUpperBound(rank, 3)
		if trueRank < lb || trueRank > ub {
			misses++
			t.Logf("trial %d: true rank %f outside [%f, %f]", trial, trueRank, lb, ub)
		}
	}
	assert.LessOrEqual(t, misses, numTrials/20, "%d of %d trials missed", misses, numTrials)
}
