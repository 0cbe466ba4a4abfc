package main

import "github.com/urfave/cli/v2"

const (
	flagAPI      = "api"
	flagInsecure = "insecure"
	flagOutput   = "output"
	flagStorage  = "storage"
	flagVerbose  = "verbose"
)

var cliFlagOutput = &cli.StringFlag{
	Name:    flagOutput,
	Aliases: []string{"o"},
	Usage:   "Return output in another format. Supported formats: table, json",
	Value:   "table",
}
