package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/redfish/deploy/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			filename := filepath.Join(os.TempDir(), "redfish-status.stack")
			if f, err := os.Create(filename); err == nil {
				defer f.Close()
				fmt.Fprintf(f, "panic: %s\n\n", r)
				fmt.Fprint(f, string(debug.Stack()))
			}
			panic(r)
		}
	}()
	cmd.Execute()
}
