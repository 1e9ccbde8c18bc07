package main

import "fmt"

func main() {
	fmt.Println("this program compiles")
}
