package main

import "github.com/audiolibrelab/awgseq/cmd"

func main() {
	cmd.Execute()
}
