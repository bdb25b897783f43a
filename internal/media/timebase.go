package media

import "fmt"

// Rational is a time base expressed as Num/Den seconds per tick.
type Rational struct {
	Num int64
	Den int64
}

// Microseconds is the time base of wall clock stamped packets.
var Microseconds = Rational{Num: 1, Den: 1_000_000}

// Milliseconds is the Matroska default timecode scale.
var Milliseconds = Rational{Num: 1, Den: 1_000}

// NewRational returns num/den.
func NewRational(num, den int64) Rational {
	return Rational{Num: num, Den: den}
}

// Valid reports whether both terms are positive.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// multiplyAndDivide computes v*m/d without overflowing for large v.
func multiplyAndDivide(v, m, d int64) int64 {
	secs := v / d
	dec := v % d
	return secs*m + dec*m/d
}

// Rescale converts ts from one time base into another, rounding toward zero.
// The conversion is monotonic: a non-decreasing input sequence stays non-decreasing.
func Rescale(ts int64, from, to Rational) int64 {
	if !from.Valid() || !to.Valid() {
		return ts
	}
	if from == to {
		return ts
	}
	return multiplyAndDivide(ts, from.Num*to.Den, from.Den*to.Num)
}
