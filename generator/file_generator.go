package generator

import (
	"bufio"
	"os"
)

const (
	maxLineLength = 16 * 1024 * 1024
)

// FileGenerator reads a file line by line.
type FileGenerator struct {
	filename string
	current  string
	line     int64
	file     *os.File
	scanner  *bufio.Scanner
}

func NewFileGenerator(filename string) (*FileGenerator, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	object := &FileGenerator{
		filename: filename,
		file:     f,
		scanner:  newScanner(f),
	}
	return object, nil
}

func newScanner(f *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return scanner
}

// Next advances to the next line. It returns false at the end of the file
// or on a read error, which Err reports.
func (self *FileGenerator) Next() bool {
	if self.scanner.Scan() {
		self.current = self.scanner.Text()
		self.line++
		return true
	}
	return false
}

// NextString returns the next line, or "" at the end of the file.
func (self *FileGenerator) NextString() string {
	if self.Next() {
		return self.current
	}
	return ""
}

func (self *FileGenerator) LastString() string {
	return self.current
}

// LineNumber is the 1-based number of the line LastString returns.
func (self *FileGenerator) LineNumber() int64 {
	return self.line
}

func (self *FileGenerator) Filename() string {
	return self.filename
}

func (self *FileGenerator) Err() error {
	return self.scanner.Err()
}

func (self *FileGenerator) Close() error {
	return self.file.Close()
}
