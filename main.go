package main

import (
	"fmt"

	"github.com/chatwire/chat-gateway/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
