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

package internal

import (
	"sort"

	"golang.org/x/exp/constraints"
)

type Inequality int

const (
	InequalityLT Inequality = iota
	InequalityLE
	InequalityGE
	InequalityGT
)

// FindWithInequality searches a sorted ascending slice, which may contain
// duplicates, for the index satisfying the given criterion:
//
//	LT: the highest index with arr[i] <  v
//	LE: the highest index with arr[i] <= v
//	GE: the lowest  index with arr[i] >= v
//	GT: the lowest  index with arr[i] >  v
//
// Returns -1 if no index qualifies.
func FindWithInequality[T constraints.Ordered](arr []T, v T, crit Inequality) int {
	n := len(arr)
	firstGE := func() int { return sort.Search(n, func(i int) bool { return arr[i] >= v }) }
	firstGT := func() int { return sort.Search(n, func(i int) bool { return arr[i] > v }) }
	switch crit {
	case InequalityLT:
		return firstGE() - 1
	case InequalityLE:
		return firstGT() - 1
	case InequalityGE:
		if i := firstGE(); i < n {
			return i
		}
	case InequalityGT:
		if i := firstGT(); i < n {
			return i
		}
	}
	return -1
}

// MergeSorted merges two sorted ascending slices into a new sorted slice.
func MergeSorted[T constraints.Ordered](a, b []T) []T {
	out := make([]T, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}
