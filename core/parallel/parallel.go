// Package parallel は CPU 並列の補助関数。
//
// 範囲の分け方は items と workers だけで決まり、各 goroutine は自分の範囲
// にだけ書き込む。呼び出し側が範囲ごとに出力先を分けていれば、結果は
// workers の値によらず同じになる。
package parallel

import (
	"fmt"
	"runtime"
	"sync"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// ParallelizeWorkers calls fn once per contiguous range of [0, items) and
// waits for all of them. workers <= 0 uses runtime.NumCPU(). A single range
// runs on the calling goroutine.
func ParallelizeWorkers(items, workers int, fn func(start, end int)) {
	spans := chunks(items, workers)
	switch len(spans) {
	case 0:
		return
	case 1:
		fn(spans[0][0], spans[0][1])
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(spans))
	for _, sp := range spans {
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(sp[0], sp[1])
	}
	wg.Wait()
}

// ParallelizeErr is ParallelizeWorkers for fallible work. It returns the
// error of the lowest failing range, so the reported error does not depend
// on scheduling. Panics come back as *errors.PanicError.
func ParallelizeErr(items, workers int, fn func(start, end int) error) error {
	spans := chunks(items, workers)
	errs := make([]error, len(spans))

	var wg sync.WaitGroup
	wg.Add(len(spans))
	for i, sp := range spans {
		go func(i, lo, hi int) {
			defer wg.Done()
			op := fmt.Sprintf("parallel range [%d,%d)", lo, hi)
			errs[i] = perrors.SafeExecute(op, func() error { return fn(lo, hi) })
		}(i, sp[0], sp[1])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// chunks は [0, items) を ceil(items/workers) 件ずつの区間に分ける
func chunks(items, workers int) [][2]int {
	if items <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, items)

	size := (items + workers - 1) / workers
	spans := make([][2]int, 0, workers)
	for lo := 0; lo < items; lo += size {
		spans = append(spans, [2]int{lo, min(lo+size, items)})
	}
	return spans
}
