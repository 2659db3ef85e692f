package main

import (
	"github.com/jayakrishnap100/california-housing-mlops/cmd/train/cmd"
)

func main() {
	cmd.Execute()
}
