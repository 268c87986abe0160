//go:build linux

package main

import (
	"fmt"

	"github.com/webitel/actorcore/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
