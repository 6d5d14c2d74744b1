package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	env := &environment{
		out:    os.Stdout,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	flag.StringVar(&env.configFile, "config", "config.yaml", "path to the YAML config file")
	flag.StringVar(&env.secretsFile, "secrets", "secrets.ejson", "path to the ejson secrets file")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range commands(env) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func commands(env *environment) []subcommands.Command {
	return []subcommands.Command{
		&ratesCmd{env: env},
		&convertCmd{env: env},
		&quoteCmd{env: env},
		&netWorthCmd{env: env},
		&switchCurrencyCmd{env: env},
		&setPriceCmd{env: env},
		&logExpenseCmd{env: env},
		&recordIncomeCmd{env: env},
	}
}
