package main

import "mongomap/src/cli"

func main() {
	cli.Execute()
}
