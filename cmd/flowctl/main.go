package main

import "github.com/flowtrack/flowgate/cmd/flowctl/cmd"

func main() {
	cmd.Execute()
}
