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
	"fmt"
	"math"

	"github.com/quantilekit/sketches-go/common"
	"github.com/quantilekit/sketches-go/internal"
)

var (
	errSketchTypeMismatch = errors.New("sketch type mismatch")
	errPreambleMismatch   = errors.New("unexpected sketch preamble")
	errInsufficientData   = errors.New("insufficient data for deserialization")
	errCorruptedData      = errors.New("serialized sketch data is corrupted")
)

// sketchMemoryValidate checks a serialized byte slice before any sketch state
// is built from it. Truncated or inconsistent input must surface as an error
// here, never as a panic or a partially constructed sketch.
type sketchMemoryValidate struct {
	srcMem          []byte
	sketchStructure sketchStructure
	serde           common.ItemSketchDoubleSerDe

	// first 8 bytes of preamble
	preInts   int
	serVer    int
	familyID  int
	flags     int
	k         uint16
	mode      Mode
	numLevels uint8

	// Flag bits:
	emptyFlag      bool
	singleItemFlag bool

	// depending on the structure, derived or read from the remaining bytes
	n                  uint64
	minValue, maxValue float64
	levelBufs          [][]float64
}

func newSketchMemoryValidate(srcMem []byte) (*sketchMemoryValidate, error) {
	if len(srcMem) < _DATA_START_ADR_SINGLE_ITEM {
		return nil, errInsufficientData
	}
	structure, err := getSketchStructure(getPreInts(srcMem), getSerVer(srcMem))
	if err != nil {
		return nil, err
	}
	if getFamilyID(srcMem) != internal.FamilyEnum.Req.Id {
		return nil, errSketchTypeMismatch
	}
	k := getK(srcMem)
	if k < _MIN_K || k > _MAX_K {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	mode := ModeLowRankAccuracy
	if getHraFlag(srcMem) {
		mode = ModeHighRankAccuracy
	}
	vlid := &sketchMemoryValidate{
		srcMem:          srcMem,
		sketchStructure: structure,
		preInts:         getPreInts(srcMem),
		serVer:          getSerVer(srcMem),
		familyID:        getFamilyID(srcMem),
		flags:           getFlags(srcMem),
		k:               k,
		mode:            mode,
		numLevels:       getNumLevels(srcMem),
		emptyFlag:       getEmptyFlag(srcMem),
		singleItemFlag:  getSingleItemFlag(srcMem),
	}
	if err := vlid.validate(); err != nil {
		return nil, err
	}
	return vlid, nil
}

func (vlid *sketchMemoryValidate) validate() error {
	switch vlid.sketchStructure {
	case _COMPACT_EMPTY:
		if !vlid.emptyFlag || vlid.singleItemFlag || vlid.numLevels != 0 {
			return errCorruptedData
		}
		vlid.n = 0
	case _COMPACT_SINGLE:
		if vlid.emptyFlag || !vlid.singleItemFlag || vlid.numLevels != 1 {
			return errCorruptedData
		}
		items, err := vlid.serde.DeserializeManyFromSlice(vlid.srcMem, _DATA_START_ADR_SINGLE_ITEM, 1)
		if err != nil {
			return errInsufficientData
		}
		if math.IsNaN(items[0]) || math.IsInf(items[0], 0) {
			return errCorruptedData
		}
		vlid.n = 1
		vlid.minValue = items[0]
		vlid.maxValue = items[0]
		vlid.levelBufs = [][]float64{{items[0]}}
	case _COMPACT_FULL:
		return vlid.validateFull()
	}
	return nil
}

func (vlid *sketchMemoryValidate) validateFull() error {
	if vlid.emptyFlag || vlid.singleItemFlag || vlid.numLevels == 0 {
		return errCorruptedData
	}
	if len(vlid.srcMem) < _DATA_START_ADR+4*int(vlid.numLevels)+16 {
		return errInsufficientData
	}
	vlid.n = getN(vlid.srcMem)
	if vlid.n < 2 {
		return errCorruptedData
	}

	counts := make([]uint32, vlid.numLevels)
	offset := _DATA_START_ADR
	totalRetained := 0
	for lvl := range counts {
		counts[lvl] = getLevelCount(vlid.srcMem, offset)
		if counts[lvl] > levelCapacity(vlid.k, uint8(lvl)) {
			return errCorruptedData
		}
		totalRetained += int(counts[lvl])
		offset += 4
	}
	if totalRetained == 0 {
		return errCorruptedData
	}
	if len(vlid.srcMem) < offset+16+8*totalRetained {
		return errInsufficientData
	}

	minMax, err := vlid.serde.DeserializeManyFromSlice(vlid.srcMem, offset, 2)
	if err != nil {
		return errInsufficientData
	}
	vlid.minValue, vlid.maxValue = minMax[0], minMax[1]
	if math.IsNaN(vlid.minValue) || math.IsNaN(vlid.maxValue) || vlid.minValue > vlid.maxValue {
		return errCorruptedData
	}
	offset += 16

	vlid.levelBufs = make([][]float64, vlid.numLevels)
	for lvl := range vlid.levelBufs {
		buf, err := vlid.serde.DeserializeManyFromSlice(vlid.srcMem, offset, int(counts[lvl]))
		if err != nil {
			return errInsufficientData
		}
		for i := range buf {
			if math.IsNaN(buf[i]) || buf[i] < vlid.minValue || buf[i] > vlid.maxValue {
				return errCorruptedData
			}
			if i > 0 && buf[i-1] > buf[i] {
				return errCorruptedData
			}
		}
		vlid.levelBufs[lvl] = buf
		offset += 8 * int(counts[lvl])
	}
	return nil
}
