package main

import "github.com/naka-gawa/review-tally/cmd"

func main() {
	cmd.Execute()
}
