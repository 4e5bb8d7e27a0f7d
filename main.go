package main

import "github.com/darmiel/badgebot/cmd"

func main() {
	cmd.Execute()
}
