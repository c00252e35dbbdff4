package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/creastat/chatstore"
)

// dayAggregate is what one day bucket and its rolling samples contribute.
type dayAggregate struct {
	counters        map[string]int64
	avgResponseTime float64
	avgConfidence   float64
	hasResponseTime bool
	hasConfidence   bool
}

// periodAggregate is the sum of the day aggregates of a period.
type periodAggregate struct {
	counters        map[string]int64
	avgResponseTime float64
	avgConfidence   float64
}

// GetAnalytics returns the report of period, which ends today.
//
// Week and month counters are the sums of the day buckets. Their averages
// are the mean of the daily averages of days that have samples, an
// approximation of the true mean.
func (e *Engine) GetAnalytics(ctx context.Context, period Period) (*Report, error) {
	agg, err := e.aggregate(ctx, period)
	if err != nil {
		return nil, err
	}
	return buildReport(period, agg), nil
}

// GetDailyReport returns the day report of the UTC day containing day.
func (e *Engine) GetDailyReport(ctx context.Context, day time.Time) (*Report, error) {
	d, err := e.readDay(ctx, day)
	if err != nil {
		return nil, err
	}
	return buildReport(PeriodDay, sumDays([]dayAggregate{d})), nil
}

// GetIntentPerformance ranks intents of period by count, descending.
func (e *Engine) GetIntentPerformance(ctx context.Context, period Period) ([]IntentStat, error) {
	agg, err := e.aggregate(ctx, period)
	if err != nil {
		return nil, err
	}

	ranked := rank(agg.counters, fieldIntentPrefix)
	stats := make([]IntentStat, len(ranked))
	for i, r := range ranked {
		stats[i] = IntentStat{Intent: r.name, Count: r.count, Percentage: percentage(r.count, agg.counters[fieldTotalEvents])}
	}
	return stats, nil
}

// GetPlatformUsage ranks platforms of period by count, descending.
func (e *Engine) GetPlatformUsage(ctx context.Context, period Period) ([]PlatformStat, error) {
	agg, err := e.aggregate(ctx, period)
	if err != nil {
		return nil, err
	}

	ranked := rank(agg.counters, fieldPlatformPrefix)
	stats := make([]PlatformStat, len(ranked))
	for i, r := range ranked {
		stats[i] = PlatformStat{Platform: r.name, Count: r.count, Percentage: percentage(r.count, agg.counters[fieldTotalEvents])}
	}
	return stats, nil
}

// GetHourlyActivity returns the 24 hour buckets of the UTC day containing day.
func (e *Engine) GetHourlyActivity(ctx context.Context, day time.Time) ([]HourCount, error) {
	start := startOfDay(day)
	hours := make([]HourCount, 24)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)
	for h := 0; h < 24; h++ {
		g.Go(func() error {
			counters, err := e.readCounters(gctx, e.hourBucketKey(start.Add(time.Duration(h)*time.Hour)))
			if err != nil {
				return err
			}
			hours[h] = HourCount{Hour: h, Events: counters[fieldTotalEvents], Errors: counters[fieldErrors]}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return hours, nil
}

// aggregate reads and sums the day buckets of period.
func (e *Engine) aggregate(ctx context.Context, period Period) (*periodAggregate, error) {
	switch period {
	case PeriodDay, PeriodWeek, PeriodMonth:
	default:
		return nil, fmt.Errorf("%w: unknown period %q", chatstore.ErrInvalidInput, period)
	}

	today := startOfDay(e.now())
	days := make([]dayAggregate, period.Days())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)
	for i := range days {
		g.Go(func() error {
			d, err := e.readDay(gctx, today.AddDate(0, 0, -i))
			if err != nil {
				return err
			}
			days[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sumDays(days), nil
}

func (e *Engine) readDay(ctx context.Context, day time.Time) (dayAggregate, error) {
	counters, err := e.readCounters(ctx, e.dayBucketKey(day))
	if err != nil {
		return dayAggregate{}, err
	}

	d := dayAggregate{counters: counters}
	d.avgResponseTime, d.hasResponseTime, err = e.readSampleAverage(ctx, e.sampleKey(sampleResponseTime, day))
	if err != nil {
		return dayAggregate{}, err
	}
	d.avgConfidence, d.hasConfidence, err = e.readSampleAverage(ctx, e.sampleKey(sampleConfidence, day))
	if err != nil {
		return dayAggregate{}, err
	}
	return d, nil
}

// readCounters returns the counters of a bucket. A missing bucket is empty.
func (e *Engine) readCounters(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := e.kv.HashGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read bucket %s: %w", chatstore.ErrRetrievalFailure, key, err)
	}

	counters := make(map[string]int64, len(raw))
	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bucket %s field %s: %w", chatstore.ErrRetrievalFailure, key, field, err)
		}
		counters[field] = n
	}
	return counters, nil
}

// readSampleAverage averages a rolling sample. Unparseable and non-finite
// entries are skipped; an empty sample reports ok=false.
func (e *Engine) readSampleAverage(ctx context.Context, key string) (avg float64, ok bool, err error) {
	values, err := e.kv.ListRange(ctx, key, 0, -1)
	if err != nil {
		return 0, false, fmt.Errorf("%w: read sample %s: %w", chatstore.ErrRetrievalFailure, key, err)
	}

	var sum float64
	var n int
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, false, nil
	}
	return sum / float64(n), true, nil
}

func sumDays(days []dayAggregate) *periodAggregate {
	agg := &periodAggregate{counters: make(map[string]int64)}

	var respSum, confSum float64
	var respDays, confDays int
	for _, d := range days {
		for field, n := range d.counters {
			agg.counters[field] += n
		}
		if d.hasResponseTime {
			respSum += d.avgResponseTime
			respDays++
		}
		if d.hasConfidence {
			confSum += d.avgConfidence
			confDays++
		}
	}
	if respDays > 0 {
		agg.avgResponseTime = respSum / float64(respDays)
	}
	if confDays > 0 {
		agg.avgConfidence = confSum / float64(confDays)
	}
	return agg
}

func buildReport(period Period, agg *periodAggregate) *Report {
	r := &Report{
		Period: period,
		Metrics: Metrics{
			TotalEvents: agg.counters[fieldTotalEvents],
			Events:      make(map[string]int64),
			Platforms:   make(map[string]int64),
			Intents:     make(map[string]int64),
			Errors:      agg.counters[fieldErrors],
		},
		Performance: Performance{
			AvgResponseTime: agg.avgResponseTime,
			AvgConfidence:   agg.avgConfidence,
		},
	}

	for field, n := range agg.counters {
		switch {
		case strings.HasPrefix(field, fieldEventPrefix):
			r.Metrics.Events[strings.TrimPrefix(field, fieldEventPrefix)] = n
		case strings.HasPrefix(field, fieldPlatformPrefix):
			r.Metrics.Platforms[strings.TrimPrefix(field, fieldPlatformPrefix)] = n
		case strings.HasPrefix(field, fieldIntentPrefix):
			r.Metrics.Intents[strings.TrimPrefix(field, fieldIntentPrefix)] = n
		}
	}
	return r
}

type ranked struct {
	name  string
	count int64
}

// rank returns the counters under prefix sorted by count descending, then
// by name.
func rank(counters map[string]int64, prefix string) []ranked {
	out := make([]ranked, 0)
	for field, n := range counters {
		if strings.HasPrefix(field, prefix) {
			out = append(out, ranked{name: strings.TrimPrefix(field, prefix), count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

// percentage returns count as a whole-number share of total.
func percentage(count, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
