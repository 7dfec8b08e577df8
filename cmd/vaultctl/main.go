// Command vaultctl inspects and prepares vault ledger files offline.
//
//	vaultctl verify -f vault.json
//	vaultctl report -f vault.json -from 2025-01-01 -type spending
//	vaultctl export -db vault.db -o backup.json
//	vaultctl seed -o seed.json -password s3cret
//	vaultctl hash-password s3cret
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
