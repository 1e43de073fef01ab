package main

import (
	"github.com/hhkbp2/esbench"
	"github.com/hhkbp2/esbench/binding"
)

func main() {
	binding.AddBindings()
	esbench.Main()
}
