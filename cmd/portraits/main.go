package main

import "github.com/brunocoulet-rtm/portraits/internal/cli"

func main() {
	cli.Execute()
}
