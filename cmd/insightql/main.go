package main

import "github.com/insightstack/insightql/internal/cli"

func main() {
	cli.Execute()
}
