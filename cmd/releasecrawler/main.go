package main

import "github.com/iantato/Ecophil-Scraper-API/cmd"

func main() {
	cmd.Execute()
}
