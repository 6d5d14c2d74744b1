package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/wealthflow-core/internal/domain"
	"github.com/simaogato/wealthflow-core/internal/usecase/emergency"
	"github.com/simaogato/wealthflow-core/internal/usecase/income"
)

type recordIncomeCmd struct {
	env         *environment
	description string
	currency    string
	account     string
	split       string
}

func (*recordIncomeCmd) Name() string { return "record-income" }
func (*recordIncomeCmd) Synopsis() string {
	return "credit an income to one account or split it across several"
}
func (*recordIncomeCmd) Usage() string {
	return `wealthctl record-income [-d <description>] [-currency <code>] (-to <account-id> | -split <rule>) <amount>

  A split rule is a comma separated list of items applied in order:
    fixed:<account-id>:<amount>     a fixed amount, taken first
    percent:<account-id>:<pct>      a percentage of what is left after fixed items
    rest:<account-id>               everything left (exactly one)
`
}

func (c *recordIncomeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.description, "d", "", "description")
	f.StringVar(&c.currency, "currency", "", "currency of the amount (defaults to the base currency)")
	f.StringVar(&c.account, "to", "", "id of the account receiving the whole income")
	f.StringVar(&c.split, "split", "", "split rule, see usage")
}

func (c *recordIncomeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	input := income.RecordIncomeInput{Description: c.description, Currency: c.currency}
	var err error
	if input.Amount, err = decimal.NewFromString(f.Arg(0)); err != nil {
		return fail(fmt.Errorf("invalid amount: %w", err))
	}
	if c.account != "" {
		id, err := uuid.Parse(c.account)
		if err != nil {
			return fail(fmt.Errorf("invalid account id: %w", err))
		}
		input.AccountID = &id
	}
	if c.split != "" {
		if input.Split, err = parseSplitRule(c.split); err != nil {
			return fail(err)
		}
	}

	store, closeStore, err := c.env.store(ctx)
	if err != nil {
		return fail(err)
	}
	defer closeStore()
	conv := c.env.converter(store, "")
	defer conv.Close()

	service := income.NewIncomeService(store, conv, emergency.NewSynchronizer(store, conv, emergency.WithLogger(c.env.logger)))
	receipt, err := service.RecordIncome(ctx, input)
	if receipt == nil {
		return fail(err)
	}
	for _, credit := range receipt.Credits {
		fmt.Fprintf(c.env.out, "%s -> %s\n", domain.FormatAmount(credit.Credited, credit.Currency), credit.AccountID)
	}
	if err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func parseSplitRule(raw string) (*domain.SplitRule, error) {
	rule := &domain.SplitRule{}
	for i, part := range strings.Split(raw, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) < 2 {
			return nil, fmt.Errorf("split item %q: want type:account[:value]", part)
		}
		accountID, err := uuid.Parse(fields[1])
		if err != nil {
			return nil, fmt.Errorf("split item %q: %w", part, err)
		}
		item := domain.SplitRuleItem{TargetAccountID: accountID, Priority: i}

		switch strings.ToLower(fields[0]) {
		case "fixed":
			item.Type = domain.SplitRuleItemTypeFixed
		case "percent":
			item.Type = domain.SplitRuleItemTypePercent
		case "rest":
			item.Type = domain.SplitRuleItemTypeRemainder
		default:
			return nil, fmt.Errorf("split item %q: unknown type %q", part, fields[0])
		}

		if item.Type != domain.SplitRuleItemTypeRemainder {
			if len(fields) != 3 {
				return nil, fmt.Errorf("split item %q: missing value", part)
			}
			if item.Value, err = decimal.NewFromString(fields[2]); err != nil {
				return nil, fmt.Errorf("split item %q: %w", part, err)
			}
		}
		rule.Items = append(rule.Items, item)
	}
	return rule, rule.Validate()
}
