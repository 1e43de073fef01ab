package generator

import (
	"strconv"
)

// IntegerGenerator is a generator capable of generating integers and strings.
type IntegerGenerator interface {
	Generator
	// NextInt returns the next value as an int. When overriding this method,
	// be sure to call SetLastInt() properly, or the LastString() call
	// won't work.
	NextInt() int64
	LastInt() int64
}

// IntegerGeneratorBase is a parent for all IntegerGenerator implementations.
type IntegerGeneratorBase struct {
	lastInt int64
}

func NewIntegerGeneratorBase(last int64) *IntegerGeneratorBase {
	return &IntegerGeneratorBase{
		lastInt: last,
	}
}

// SetLastInt sets the last value to be generated.
// IntegerGenerator implementations must use this call to properly set the
// last int value, or the LastString() and LastInt() calls won't work.
func (self *IntegerGeneratorBase) SetLastInt(value int64) {
	self.lastInt = value
}

// NextString generates the next string in the distribution.
func (self *IntegerGeneratorBase) NextString(g IntegerGenerator) string {
	return strconv.FormatInt(g.NextInt(), 10)
}

func (self *IntegerGeneratorBase) LastInt() int64 {
	return self.lastInt
}

func (self *IntegerGeneratorBase) LastString() string {
	return strconv.FormatInt(self.LastInt(), 10)
}
