package main

import (
	"fmt"

	"github.com/taskmesh/task-delivery-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
