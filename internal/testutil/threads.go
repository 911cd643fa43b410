package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/racerepro/internal/dispatch"
)

// Thread returns the events "<prefix>1" .. "<prefix>n".
//
//	Thread("A", 3) // ["A1", "A2", "A3"]
func Thread(prefix string, n int) []string {
	events := make([]string, n)
	for i := range events {
		events[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return events
}

// RunThreads starts one goroutine per thread. Each reports its events through
// point in order. RunThreads returns once every goroutine has finished.
//
// Thread-safety: the goroutines share nothing but point.
func RunThreads(point *dispatch.Point, threads ...[]string) {
	var wg sync.WaitGroup
	for _, events := range threads {
		wg.Add(1)
		go func(events []string) {
			defer wg.Done()
			for _, e := range events {
				point.Report(e)
			}
		}(events)
	}
	wg.Wait()
}

// Multinomial returns (sum counts)! / (counts[0]! * counts[1]! * ...), the
// number of distinct interleavings of threads with the given event counts.
func Multinomial(counts ...int) int {
	result := 1
	total := 0
	for _, c := range counts {
		// Multiply by C(total+c, c) one factor at a time; every step is exact.
		for i := 1; i <= c; i++ {
			total++
			result = result * total / i
		}
	}
	return result
}
