package main

import "github.com/chughtapan/wags-gate/cmd/wags-gate/cmd"

func main() {
	cmd.Execute()
}
