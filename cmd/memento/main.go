// Command memento stages and commits workspace metadata edits against a
// shared table.
package main

import "github.com/mantidproject/mantid-sub073/internal/cli"

func main() {
	cli.Execute()
}
