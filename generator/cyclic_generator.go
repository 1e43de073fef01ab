package generator

// CyclicGenerator walks the indexes of a sequence of the given length in
// order and wraps around to 0 after the last one.
// It is not safe for concurrent use.
type CyclicGenerator struct {
	*IntegerGeneratorBase
	length int64
	next   int64
}

func NewCyclicGenerator(length int64) *CyclicGenerator {
	if length <= 0 {
		panic("cyclic generator requires a positive length")
	}
	return &CyclicGenerator{
		IntegerGeneratorBase: NewIntegerGeneratorBase(-1),
		length:               length,
	}
}

func (self *CyclicGenerator) NextInt() int64 {
	ret := self.next
	self.next = (self.next + 1) % self.length
	self.SetLastInt(ret)
	return ret
}

func (self *CyclicGenerator) NextString() string {
	return self.IntegerGeneratorBase.NextString(self)
}

func (self *CyclicGenerator) Length() int64 {
	return self.length
}
