package main

import "github.com/vibast-solutions/ms-go-email-queue/cmd"

func main() {
	cmd.Execute()
}
