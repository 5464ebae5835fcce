// Command cfait is the terminal interface to the cfait task engine.
package main

import "github.com/cfait/cfait/internal/cli"

func main() {
	cli.Execute()
}
