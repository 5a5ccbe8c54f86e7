// trustprobe evaluates structural compliance of governance event streams.
package main

import "github.com/pkarpov/trustprobe/internal/cli"

func main() {
	cli.Execute()
}
