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
	"github.com/quantilekit/sketches-go/internal"
)

// sketchSortedView is the weighted order statistic over all levels: every
// retained value, sorted ascending, tandem with its cumulative weight. All
// rank and quantile queries read this flattened form; it is rebuilt lazily
// after each mutation.
type sketchSortedView struct {
	quantiles   []float64
	cumWeights  []int64
	totalWeight int64
	minValue    float64
	maxValue    float64
}

func newSketchSortedView(s *Sketch) (*sketchSortedView, error) {
	if s.IsEmpty() {
		return nil, ErrEmpty
	}
	var quantiles []float64
	var weights []int64
	for _, c := range s.compactors {
		if len(c.buf) == 0 {
			continue
		}
		quantiles, weights = tandemMerge(quantiles, weights, c.buf, int64(c.weight()))
	}
	totalWeight := convertToCumulative(weights)
	return &sketchSortedView{
		quantiles:   quantiles,
		cumWeights:  weights,
		totalWeight: totalWeight,
		minValue:    s.minValue,
		maxValue:    s.maxValue,
	}, nil
}

// tandemMerge merges a level buffer of uniform weight into the accumulated
// (values, per-value weights) pair, keeping both arrays aligned and sorted.
func tandemMerge(vals []float64, weights []int64, buf []float64, weight int64) ([]float64, []int64) {
	outVals := make([]float64, 0, len(vals)+len(buf))
	outWeights := make([]int64, 0, len(vals)+len(buf))
	i, j := 0, 0
	for i < len(vals) && j < len(buf) {
		if vals[i] <= buf[j] {
			outVals = append(outVals, vals[i])
			outWeights = append(outWeights, weights[i])
			i++
		} else {
			outVals = append(outVals, buf[j])
			outWeights = append(outWeights, weight)
			j++
		}
	}
	for ; i < len(vals); i++ {
		outVals = append(outVals, vals[i])
		outWeights = append(outWeights, weights[i])
	}
	for ; j < len(buf); j++ {
		outVals = append(outVals, buf[j])
		outWeights = append(outWeights, weight)
	}
	return outVals, outWeights
}

func (v *sketchSortedView) GetQuantile(rank float64, inclusive bool) (float64, error) {
	if err := checkNormalizedRankBounds(rank); err != nil {
		return 0, err
	}
	naturalRank := getNaturalRank(rank, v.totalWeight, inclusive)
	crit := internal.InequalityGT
	if inclusive {
		crit = internal.InequalityGE
	}
	index := internal.FindWithInequality(v.cumWeights, naturalRank, crit)
	if index == -1 {
		return v.quantiles[len(v.quantiles)-1], nil
	}
	return v.quantiles[index], nil
}

func (v *sketchSortedView) GetRank(value float64, inclusive bool) (float64, error) {
	crit := internal.InequalityLT
	if inclusive {
		crit = internal.InequalityLE
	}
	index := internal.FindWithInequality(v.quantiles, value, crit)
	if index == -1 {
		return 0, nil
	}
	return float64(v.cumWeights[index]) / float64(v.totalWeight), nil
}

func (v *sketchSortedView) GetCDF(splitPoints []float64, inclusive bool) ([]float64, error) {
	if err := checkSplitPoints(splitPoints); err != nil {
		return nil, err
	}
	buckets := make([]float64, len(splitPoints)+1)
	for i := range splitPoints {
		rank, err := v.GetRank(splitPoints[i], inclusive)
		if err != nil {
			return nil, err
		}
		buckets[i] = rank
	}
	buckets[len(buckets)-1] = 1.0
	return buckets, nil
}

func (v *sketchSortedView) GetPMF(splitPoints []float64, inclusive bool) ([]float64, error) {
	buckets, err := v.GetCDF(splitPoints, inclusive)
	if err != nil {
		return nil, err
	}
	for i := len(buckets) - 1; i > 0; i-- {
		buckets[i] -= buckets[i-1]
	}
	return buckets, nil
}
