// This program provides puzzle utilities and a client for the node.
package main

import "github.com/ardanlabs/puzzlekit/app/tooling/puzzle/cmd"

func main() {
	cmd.Execute()
}
