package main

import "github.com/flowtrack/flowgate/cmd/flowgate/cmd"

func main() {
	cmd.Execute()
}
