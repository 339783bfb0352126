package main

import "github.com/vietddude/jobpoll/internal/cli"

func main() {
	cli.Execute()
}
