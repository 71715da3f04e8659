package clean

import (
	"fmt"
	"sort"
	"time"
)

type monthlySample struct {
	t time.Time
	v float64
}

type aggKind int

const (
	aggMean aggKind = iota
	aggSum
)

// monthlyAggregate buckets samples by calendar month and reduces each bucket
// with the requested aggregate. Output is ordered by month, dates normalized
// to the first of the month.
func monthlyAggregate(samples []monthlySample, kind aggKind) (dates []string, values []float64) {
	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[string]*bucket)

	for _, s := range samples {
		key := fmt.Sprintf("%04d-%02d-01", s.t.Year(), int(s.t.Month()))
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += s.v
		b.count++
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b := buckets[k]
		dates = append(dates, k)
		switch kind {
		case aggSum:
			values = append(values, b.sum)
		default:
			values = append(values, b.sum/float64(b.count))
		}
	}
	return dates, values
}
