/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "recurry/cmd"

func main() {
	cmd.Execute()
}
