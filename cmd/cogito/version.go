package main

import (
	"fmt"
	"runtime/debug"

	version "github.com/cogito-ai/cogito"
)

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	info := version.GetVersion()
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Version != "(devel)" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
	}
	fmt.Println(info.String())
	return nil
}
