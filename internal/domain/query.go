package domain

import (
	"fmt"
	"time"
)

const (
	// NoCount marks a query without a message cap
	NoCount = -1

	// DefaultCount is sent when the query carries no cap
	DefaultCount = 1000
)

// Query selects the part of a channel history to fetch
type Query struct {
	ChannelID string
	// Day restricts the history to one UTC calendar day. Only the
	// year, month and day of the value are used.
	Day *time.Time
	// Count caps the number of messages. Nil, as in the zero value, means
	// no cap; zero is a real cap.
	Count *int
}

// QueryOption customizes a Query
type QueryOption func(*Query)

// NewQuery builds a query for a channel with no day and no cap
func NewQuery(channelID string, opts ...QueryOption) Query {
	q := Query{ChannelID: channelID}
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// OnDay restricts the query to a single calendar day
func OnDay(day time.Time) QueryOption {
	return func(q *Query) {
		d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		q.Day = &d
	}
}

// Limit caps the number of returned messages. NoCount, or any other
// negative value, removes the cap.
func Limit(n int) QueryOption {
	return func(q *Query) {
		if n <= NoCount {
			q.Count = nil
			return
		}
		c := n
		q.Count = &c
	}
}

// Validate checks the query before it is sent
func (q Query) Validate() error {
	if q.ChannelID == "" {
		return fmt.Errorf("%w: channel id is required", ErrInvalidInput)
	}
	return nil
}

// EffectiveCount returns the cap sent to the server
func (q Query) EffectiveCount() int {
	if q.Count != nil && *q.Count > NoCount {
		return *q.Count
	}
	return DefaultCount
}
