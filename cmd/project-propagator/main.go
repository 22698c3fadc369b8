package main

import "github.com/cybozu-go/project-propagator/cmd/project-propagator/sub"

func main() {
	sub.Execute()
}
