// Package main provides the avmeta CLI.
package main

import "github.com/mesh-intelligence/avmeta/internal/cli"

func main() {
	cli.Execute()
}
