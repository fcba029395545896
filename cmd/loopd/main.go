package main

import "github.com/agusx1211/loopd/internal/cli"

func main() {
	cli.Execute()
}
