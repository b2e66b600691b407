package main

import "github.com/ValentinKolb/glidecore/cmd"

func main() {
	cmd.Execute()
}
