package main

import "github.com/vietddude/retryguard/internal/cli"

func main() {
	cli.Execute()
}
