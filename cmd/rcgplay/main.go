package main

import "github.com/OpenTraceLab/OpenTraceSoccer/cmd/rcgplay/cmd"

func main() {
	cmd.Execute()
}
