package main

import "github.com/KaramelBytes/surveyate/cmd"

func main() {
	cmd.Execute()
}
