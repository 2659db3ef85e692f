package main

import (
	"github.com/jayakrishnap100/california-housing-mlops/cmd/serve/cmd"
)

func main() {
	cmd.Execute()
}
