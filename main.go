// Command rstf packs a file or directory into a single compressed,
// authenticated-encrypted container, and reverses the process.
package main

import "github.com/warchs/rstf/cmd"

func main() {
	cmd.Execute()
}
