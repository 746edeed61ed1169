// Package main is the entry point for datagate.
package main

func main() {
	Execute()
}
