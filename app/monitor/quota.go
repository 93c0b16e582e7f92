package monitor

import (
	"sync"
	"time"
)

const DefaultDailyCap = 3

// DailyQuota counts forwards per calendar day in loc. The counter resets
// the first time it is consulted on a new day.
type DailyQuota struct {
	cap   int
	loc   *time.Location
	day   string
	count int
	mu    sync.Mutex
}

func NewDailyQuota(cap int, loc *time.Location) *DailyQuota {
	if cap <= 0 {
		cap = DefaultDailyCap
	}
	if loc == nil {
		loc = time.Local
	}
	return &DailyQuota{cap: cap, loc: loc}
}

// Allow reports whether another forward fits into the day of now.
func (q *DailyQuota) Allow(now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked(now)
	return q.count < q.cap
}

func (q *DailyQuota) Record(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked(now)
	q.count++
}

// Count returns the number of forwards recorded on the day of now.
func (q *DailyQuota) Count(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollLocked(now)
	return q.count
}

func (q *DailyQuota) Cap() int {
	return q.cap
}

func (q *DailyQuota) rollLocked(now time.Time) {
	day := now.In(q.loc).Format(time.DateOnly)
	if day != q.day {
		q.day = day
		q.count = 0
	}
}
