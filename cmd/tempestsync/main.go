package main

import "tempestsync/cmd/tempestsync/cmd"

func main() {
	cmd.Execute()
}
