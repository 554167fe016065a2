// ./main.go
package main

import (
	"github.com/pvmonitor/harvest-cli/cmd"
)

func main() {
	cmd.Execute()
}
