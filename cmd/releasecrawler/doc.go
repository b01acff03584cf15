// releasecrawler is the command-line entry point for the customs
// declarations scraper. See the cmd package for the subcommands.
package main
