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

import "strings"

// Mode selects which end of the rank domain retains zero error.
type Mode uint8

const (
	// ModeHighRankAccuracy guarantees zero error at rank 1.0 (the maximum).
	// Use for tail quantiles such as p90, p99, p99.9.
	ModeHighRankAccuracy Mode = iota
	// ModeLowRankAccuracy guarantees zero error at rank 0.0 (the minimum).
	ModeLowRankAccuracy
)

func (m Mode) String() string {
	if m == ModeHighRankAccuracy {
		return "HRA"
	}
	return "LRA"
}

// ParseMode parses a case-insensitive mode string, accepting both the short
// ("HRA", "LRA") and long ("HighRankAccuracy", "LowRankAccuracy") spellings.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(s) {
	case "HRA", "HIGHRANKACCURACY":
		return ModeHighRankAccuracy, nil
	case "LRA", "LOWRANKACCURACY":
		return ModeLowRankAccuracy, nil
	}
	return 0, ErrInvalidMode
}
