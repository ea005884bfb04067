// Command libdyss builds the classifier as a C shared library for
// read-until drivers:
//
//	go build -buildmode=c-shared -o libdyss.so ./cmd/libdyss
//
// The exported symbols keep the names and status codes the Python driver
// expects. Handles are registry ids, not pointers.
package main

/*
#include <stddef.h>
#include <stdint.h>
*/
import "C"

import (
	"unsafe"

	"dyss/boundary"
	"dyss/utils"
)

func init() {
	boundary.SetWorkers(utils.GetEnvInt("DYSS_WORKERS", 0))
}

//export construct_dyss
func construct_dyss(numScouts, numPacks C.int, refPath, modelPath, paramPath *C.char, power C.int, querySize, refSize C.size_t) C.uintptr_t {
	qs, okQuery := toLen(uint64(querySize))
	rs, okRef := toLen(uint64(refSize))
	if refPath == nil || modelPath == nil || paramPath == nil || !okQuery || !okRef {
		return 0
	}
	h := boundary.Construct(int(numScouts), int(numPacks),
		C.GoString(refPath), C.GoString(modelPath), C.GoString(paramPath),
		int(power), qs, rs)
	return C.uintptr_t(h)
}

//export dyss_classify
func dyss_classify(h C.uintptr_t, query *C.int, length C.size_t) C.int {
	return C.int(classify(boundary.Handle(h), unsafe.Pointer(query), uint64(length)))
}

//export batch_classify
func batch_classify(h C.uintptr_t, data **C.int, lengths *C.size_t, count C.size_t, result *C.int) C.int {
	return C.int(batch(boundary.Handle(h), unsafe.Pointer(data), unsafe.Pointer(lengths), uint64(count), unsafe.Pointer(result)))
}

//export dyss_destructor
func dyss_destructor(h C.uintptr_t) {
	boundary.Destroy(boundary.Handle(h))
}

//export is_null
func is_null(h C.uintptr_t) C.int {
	if boundary.Live(boundary.Handle(h)) {
		return 1
	}
	return 0
}

func main() {}
