package main

import (
	"math"
	"unsafe"

	"dyss/boundary"
	"dyss/classifier"
)

// toLen converts a C size to a slice length. sizes above MaxInt32 are
// refused so the byte length of an int32 or pointer slice cannot overflow.
func toLen(n uint64) (int, bool) {
	if n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// classify reads length int32 samples at query.
func classify(h boundary.Handle, query unsafe.Pointer, length uint64) int32 {
	l, ok := toLen(length)
	if query == nil || !ok {
		return int32(classifier.Reject)
	}
	return int32(boundary.Classify(h, unsafe.Slice((*int32)(query), l)))
}

// batch views data as count pointers to int32 buffers, lengths as count
// size_t values and result as count int32 slots. the handle is checked
// before any of them is read.
func batch(h boundary.Handle, data, lengths unsafe.Pointer, count uint64, result unsafe.Pointer) int32 {
	if boundary.Classifier(h) == nil {
		return int32(boundary.StatusNullHandle)
	}
	n, ok := toLen(count)
	if !ok {
		return int32(boundary.StatusNullLengths)
	}

	var lens []int
	if lengths != nil {
		raw := unsafe.Slice((*uintptr)(lengths), n)
		lens = make([]int, n)
		for i, l := range raw {
			if lens[i], ok = toLen(uint64(l)); !ok {
				return int32(boundary.StatusNullQuery)
			}
		}
	}

	var queries [][]int32
	if data != nil {
		ptrs := unsafe.Slice((*unsafe.Pointer)(data), n)
		queries = make([][]int32, n)
		for i, p := range ptrs {
			if p == nil {
				continue
			}
			l := 0
			if lens != nil {
				l = lens[i]
			}
			queries[i] = unsafe.Slice((*int32)(p), l)
		}
	}

	var out []classifier.Classification
	if result != nil {
		out = make([]classifier.Classification, n)
	}
	status := boundary.BatchClassify(h, queries, lens, n, out)
	if status == boundary.StatusOK {
		dst := unsafe.Slice((*int32)(result), n)
		for i, c := range out {
			dst[i] = int32(c)
		}
	}
	return int32(status)
}
