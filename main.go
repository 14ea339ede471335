package main

import "github.com/kozaktomas/photo-curator/cmd"

func main() {
	cmd.Execute()
}
