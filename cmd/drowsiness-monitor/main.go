package main

import "github.com/oshokin/drowsiness-monitor/cmd/drowsiness-monitor/cmd"

func main() {
	cmd.Execute()
}
