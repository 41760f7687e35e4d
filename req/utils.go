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
	"errors"
	"math"
)

var (
	errNanInSplitPoints   = errors.New("NaN in split points")
	errInvalidSplitPoints = errors.New("split points must be unique and monotonically increasing")
)

const tailRoundingFactor = 1e7

func convertToCumulative(array []int64) int64 {
	subtotal := int64(0)
	for i := range array {
		subtotal += array[i]
		array[i] = subtotal
	}
	return subtotal
}

// getNaturalRank converts a normalized rank into an absolute position within
// the total retained weight. Rounding before the ceil/floor keeps ranks such
// as 0.3*10 from landing on either side of an integer boundary depending on
// floating point representation.
func getNaturalRank(normalizedRank float64, totalWeight int64, inclusive bool) int64 {
	naturalRank := normalizedRank * float64(totalWeight)
	if totalWeight <= tailRoundingFactor {
		naturalRank = math.Round(naturalRank*tailRoundingFactor) / tailRoundingFactor
	}
	if inclusive {
		return int64(math.Ceil(naturalRank))
	}
	return int64(math.Floor(naturalRank))
}

func checkNormalizedRankBounds(rank float64) error {
	if math.IsNaN(rank) || rank < 0 || rank > 1 {
		return ErrInvalidRank
	}
	return nil
}

func checkSplitPoints(splitPoints []float64) error {
	for i := range splitPoints {
		if math.IsNaN(splitPoints[i]) {
			return errNanInSplitPoints
		}
		if i > 0 && splitPoints[i-1] >= splitPoints[i] {
			return errInvalidSplitPoints
		}
	}
	return nil
}
