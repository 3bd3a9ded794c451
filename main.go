// The main package for the caseharvester executable.
package main

import "github.com/openrecords/caseharvester/cmd"

func main() {
	cmd.Execute()
}
