package main

import "github.com/avroom/reelcut/internal/cli"

func main() {
	cli.Main()
}
