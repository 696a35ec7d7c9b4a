package consumer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ParameterValue is one of String, Int, Float, Bool or Date.
type ParameterValue interface {
	// DisplayString is the form sent to the vendor.
	DisplayString() string
	isParameterValue()
}

type (
	String string
	Int    int64
	Float  float64
	Bool   bool
	Date   time.Time
)

// Dates are always rendered in UTC.
const dateLayout = "2006-01-02 15:04:05 -0700"

func (v String) DisplayString() string { return string(v) }

func (v Int) DisplayString() string { return strconv.FormatInt(int64(v), 10) }

// DisplayString renders whole numbers with a trailing ".0". Magnitudes below
// 1e-4 or from 1e16 up use exponent form, as in 1e+20 and 1e-07.
func (v Float) DisplayString() string {
	f := float64(v)
	if abs := math.Abs(f); abs != 0 && !math.IsInf(f, 0) && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}

func (v Bool) DisplayString() string { return strconv.FormatBool(bool(v)) }

func (v Date) DisplayString() string { return time.Time(v).UTC().Format(dateLayout) }

func (String) isParameterValue() {}
func (Int) isParameterValue()    {}
func (Float) isParameterValue()  {}
func (Bool) isParameterValue()   {}
func (Date) isParameterValue()   {}
