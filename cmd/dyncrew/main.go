// Command dyncrew designs an AI agent team for a natural-language request
// and runs it.
package main

func main() {
	Execute()
}
