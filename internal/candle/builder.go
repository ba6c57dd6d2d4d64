package candle

import "time"

// MinTicksPerCandle is the number of ticks a bucket needs to become a candle.
const MinTicksPerCandle = 2

type bucket struct {
	start  time.Time
	prices []float64
}

// Builder groups price ticks into UTC minute and hour buckets. Each call to
// Add returns the candles finalized by that tick.
type Builder struct {
	pair   string
	minute bucket
	hour   bucket
}

func NewBuilder(pair string) *Builder {
	return &Builder{pair: pair}
}

func (b *Builder) Pair() string { return b.pair }

// Add records a tick. Moving into a new minute finalizes the previous
// minute; moving into a new hour finalizes the previous hour as the
// "<pair>_1h" series. Buckets with fewer than MinTicksPerCandle ticks are
// dropped.
func (b *Builder) Add(ts time.Time, price float64) []Candle {
	ts = ts.UTC()
	var done []Candle

	minute := ts.Truncate(time.Minute)
	if !b.minute.start.IsZero() && !minute.Equal(b.minute.start) {
		if len(b.minute.prices) >= MinTicksPerCandle {
			done = append(done, FromTicks(b.pair, b.minute.start, b.minute.prices))
		}
		b.minute = bucket{}
	}
	if b.minute.start.IsZero() {
		b.minute.start = minute
	}
	b.minute.prices = append(b.minute.prices, price)

	hour := ts.Truncate(time.Hour)
	if !b.hour.start.IsZero() && !hour.Equal(b.hour.start) {
		if len(b.hour.prices) >= MinTicksPerCandle {
			done = append(done, FromTicks(b.pair+HourlySuffix, b.hour.start, b.hour.prices))
		}
		b.hour = bucket{}
	}
	if b.hour.start.IsZero() {
		b.hour.start = hour
	}
	b.hour.prices = append(b.hour.prices, price)

	return done
}
