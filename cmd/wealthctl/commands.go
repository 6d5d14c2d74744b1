package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/simaogato/wealthflow-core/internal/usecase/dashboard"
	"github.com/simaogato/wealthflow-core/internal/usecase/expense"
	"github.com/simaogato/wealthflow-core/internal/usecase/investment"
)

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type ratesCmd struct {
	env   *environment
	pivot string
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "print the exchange-rate table for a pivot currency" }
func (*ratesCmd) Usage() string {
	return `wealthctl rates [-pivot <code>]

  Fetches the rate table from the rates API. When the API is unreachable the
  built-in fallback table is printed and marked as such.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.pivot, "pivot", "", "pivot currency (defaults to the configured pivot)")
}

func (c *ratesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.env.load(); err != nil {
		return fail(err)
	}
	conv := c.env.converter(nil, domain.NormalizeCurrency(c.pivot))
	defer conv.Close()

	table, err := conv.Rates(ctx)
	if err != nil {
		return fail(err)
	}

	codes := make([]string, 0, len(table.Rates))
	for code := range table.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Fprintf(c.env.out, "1 %s (%s)\n", table.Base, table.Source)
	for _, code := range codes {
		fmt.Fprintf(c.env.out, "  %s %s\n", code, table.Rates[code].String())
	}
	return subcommands.ExitSuccess
}

type convertCmd struct {
	env *environment
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "convert an amount between two currencies" }
func (*convertCmd) Usage() string {
	return `wealthctl convert <amount> <from> <to>

  Converts through the pivot currency and rounds to 2 decimal places.
`
}

func (*convertCmd) SetFlags(*flag.FlagSet) {}

func (c *convertCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	amount, err := decimal.NewFromString(f.Arg(0))
	if err != nil {
		return fail(fmt.Errorf("invalid amount %q: %w", f.Arg(0), err))
	}
	if err := c.env.load(); err != nil {
		return fail(err)
	}
	conv := c.env.converter(nil, "")
	defer conv.Close()

	to := domain.NormalizeCurrency(f.Arg(2))
	result, err := conv.Convert(ctx, amount, f.Arg(1), to)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintln(c.env.out, domain.FormatAmount(result, to))
	return subcommands.ExitSuccess
}

type quoteCmd struct {
	env *environment
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetch the current quote for a symbol" }
func (*quoteCmd) Usage() string {
	return `wealthctl quote <symbol>

  Without a valid API token the quote is simulated, and marked as such.
`
}

func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	if err := c.env.load(); err != nil {
		return fail(err)
	}

	quote, err := c.env.quoteClient().GetQuote(ctx, f.Arg(0))
	if err != nil {
		return fail(err)
	}
	source := "live"
	if !quote.IsLive {
		source = "simulated"
	}
	fmt.Fprintf(c.env.out, "%s %s %s (%s%%) %s\n",
		quote.Symbol,
		domain.FormatAmount(quote.Price, quote.Currency),
		quote.Change.StringFixed(2),
		quote.ChangePercent.StringFixed(2),
		source,
	)
	return subcommands.ExitSuccess
}

type netWorthCmd struct {
	env *environment
}

func (*netWorthCmd) Name() string     { return "networth" }
func (*netWorthCmd) Synopsis() string { return "print net worth in the base currency" }
func (*netWorthCmd) Usage() string {
	return `wealthctl networth
`
}

func (*netWorthCmd) SetFlags(*flag.FlagSet) {}

func (c *netWorthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeStore, err := c.env.store(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeStore()
	conv := c.env.converter(store, "")
	defer conv.Close()

	result, err := dashboard.NewDashboardService(store, conv).GetNetWorth(ctx)
	if err != nil {
		return fail(err)
	}
	rows := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Liquidity", result.Liquidity},
		{"Investments", result.Investments},
		{"Property", result.Property},
		{"Receivables", result.Receivables},
		{"Liabilities", result.Liabilities.Neg()},
		{"Total", result.Total},
		{"Investment profit", result.Profit},
	}
	for _, r := range rows {
		fmt.Fprintf(c.env.out, "%-18s %s\n", r.label, domain.FormatAmount(r.amount, result.Currency))
	}
	return subcommands.ExitSuccess
}

type switchCurrencyCmd struct {
	env *environment
}

func (*switchCurrencyCmd) Name() string { return "switch-currency" }
func (*switchCurrencyCmd) Synopsis() string {
	return "convert every stored amount into a new base currency"
}
func (*switchCurrencyCmd) Usage() string {
	return `wealthctl switch-currency <code>

  Either every amount is converted or nothing changes.
`
}

func (*switchCurrencyCmd) SetFlags(*flag.FlagSet) {}

func (c *switchCurrencyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	store, closeStore, err := c.env.store(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeStore()
	conv := c.env.converter(store, "")
	defer conv.Close()

	result, err := conv.ConvertAllValues(ctx, f.Arg(0))
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.env.out, "switched %s -> %s: %d amounts converted using %s rates\n",
		result.From, result.To, result.FieldsConverted, result.RateSource)
	return subcommands.ExitSuccess
}

type setPriceCmd struct {
	env *environment
}

func (*setPriceCmd) Name() string     { return "set-price" }
func (*setPriceCmd) Synopsis() string { return "set an asset's price per unit by hand" }
func (*setPriceCmd) Usage() string {
	return `wealthctl set-price <asset-id> <price>
`
}

func (*setPriceCmd) SetFlags(*flag.FlagSet) {}

func (c *setPriceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	assetID, err := uuid.Parse(f.Arg(0))
	if err != nil {
		return fail(fmt.Errorf("invalid asset id: %w", err))
	}
	price, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		return fail(fmt.Errorf("invalid price: %w", err))
	}
	store, closeStore, err := c.env.store(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeStore()

	asset, err := investment.NewInvestmentService(store, nil).UpdateAssetPrice(ctx, assetID, price)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.env.out, "%s now worth %s\n", asset.Name, domain.FormatAmount(asset.Value, asset.Currency))
	return subcommands.ExitSuccess
}

type logExpenseCmd struct {
	env         *environment
	description string
	category    string
	currency    string
	budget      string
	date        string
}

func (*logExpenseCmd) Name() string     { return "log-expense" }
func (*logExpenseCmd) Synopsis() string { return "record an expense and charge its budget" }
func (*logExpenseCmd) Usage() string {
	return `wealthctl log-expense [-d <description>] [-c <category>] [-currency <code>] [-budget <id>] [-date YYYY-MM-DD] <amount>
`
}

func (c *logExpenseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "d", "", "description")
	f.StringVar(&c.category, "c", "", "category")
	f.StringVar(&c.currency, "currency", "", "currency of the amount (defaults to the base currency)")
	f.StringVar(&c.budget, "budget", "", "id of the budget to charge")
	f.StringVar(&c.date, "date", "", "date of the expense (defaults to today)")
}

func (c *logExpenseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	input := expense.LogExpenseInput{
		Description: c.description,
		Category:    c.category,
		Currency:    c.currency,
	}
	var err error
	if input.Amount, err = decimal.NewFromString(f.Arg(0)); err != nil {
		return fail(fmt.Errorf("invalid amount: %w", err))
	}
	if c.budget != "" {
		id, err := uuid.Parse(c.budget)
		if err != nil {
			return fail(fmt.Errorf("invalid budget id: %w", err))
		}
		input.BudgetID = &id
	}
	if c.date != "" {
		if input.Date, err = time.Parse(time.DateOnly, c.date); err != nil {
			return fail(fmt.Errorf("invalid date: %w", err))
		}
	}

	store, closeStore, err := c.env.store(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeStore()
	conv := c.env.converter(store, "")
	defer conv.Close()

	logged, err := expense.NewExpenseService(store, conv).LogExpense(ctx, input)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(c.env.out, "logged %s (%s)\n", domain.FormatAmount(logged.Amount, logged.Currency), logged.ID)
	return subcommands.ExitSuccess
}
