// Command commentable serves the threaded comment API and manages its table.
package main

func main() {
	Execute()
}
