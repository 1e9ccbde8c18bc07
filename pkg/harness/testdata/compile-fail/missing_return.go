package main

func pick(b bool) int {
	if b {
		return 1
	}
}

func main() {
	_ = pick(true)
}
