// Package sample gates captured audio before it is sent for recognition.
package sample

// Class is the verdict for one captured sample.
type Class int

const (
	Usable Class = iota
	Silent
	Zero
)

func (c Class) String() string {
	switch c {
	case Usable:
		return "usable"
	case Silent:
		return "silent"
	case Zero:
		return "zero"
	default:
		return "unknown"
	}
}

// Classify compares an amplitude statistic with the silence threshold.
// An exact zero means the input produced no signal at all, which usually
// points at a dead or muted device rather than a quiet room.
func Classify(amplitude, threshold float64) Class {
	switch {
	case amplitude == 0:
		return Zero
	case amplitude < threshold:
		return Silent
	default:
		return Usable
	}
}

// Verdict is the outcome of Evaluator.Observe.
type Verdict struct {
	Class Class
	// Zeros is the consecutive-zero count after this sample.
	Zeros int
	// Failover is set when the zero count reached the ceiling. The counter
	// has already been reset.
	Failover bool
}

// Evaluator classifies samples and counts consecutive zero readings.
type Evaluator struct {
	threshold float64
	ceiling   int
	zeros     int
}

// NewEvaluator creates an evaluator. A ceiling below 1 is treated as 1.
func NewEvaluator(threshold float64, ceiling int) *Evaluator {
	return &Evaluator{threshold: threshold, ceiling: max(ceiling, 1)}
}

// Observe classifies amplitude and updates the consecutive-zero counter.
func (e *Evaluator) Observe(amplitude float64) Verdict {
	class := Classify(amplitude, e.threshold)
	if class != Zero {
		e.zeros = 0
		return Verdict{Class: class}
	}

	e.zeros++
	if e.zeros >= e.ceiling {
		e.zeros = 0
		return Verdict{Class: Zero, Failover: true}
	}
	return Verdict{Class: Zero, Zeros: e.zeros}
}

// Zeros returns the current consecutive-zero count.
func (e *Evaluator) Zeros() int {
	return e.zeros
}

// Reset clears the counter, e.g. after switching sources.
func (e *Evaluator) Reset() {
	e.zeros = 0
}
