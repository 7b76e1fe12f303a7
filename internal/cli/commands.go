package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/pquerna/otp/totp"

	"tradebook/internal/model"
)

// submitCmd records a trade.
type submitCmd struct {
	app       *App
	otp       string
	otpSecret string
}

func (*submitCmd) Name() string     { return "submit" }
func (*submitCmd) Synopsis() string { return "record a buy or sell trade" }
func (*submitCmd) Usage() string {
	return `tradectl submit [-otp <code> | -otp-secret <secret>] <buy|sell> <symbol> <quantity> <price>

  Records a trade. Sells must not exceed the open holding.
`
}

func (c *submitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.otp, "otp", "", "one-time password sent with the trade")
	f.StringVar(&c.otpSecret, "otp-secret", os.Getenv("TRADEBOOK_OTP_SECRET"), "TOTP secret used to generate the one-time password")
}

func (c *submitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 4 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	req := model.TradeRequest{
		Side:     f.Arg(0),
		Symbol:   f.Arg(1),
		Quantity: f.Arg(2),
		Price:    f.Arg(3),
	}
	return status(c.run(ctx, req))
}

func (c *submitCmd) run(ctx context.Context, req model.TradeRequest) error {
	code := c.otp
	if code == "" && c.otpSecret != "" {
		var err error
		if code, err = totp.GenerateCode(c.otpSecret, time.Now()); err != nil {
			return fmt.Errorf("generate otp: %w", err)
		}
	}
	body, err := c.app.Client.Submit(ctx, req, code)
	if err != nil {
		return err
	}
	return c.app.emit(body, func() (string, error) {
		v, err := decode[submitView](body)
		return submitMarkdown(v, c.app.currency()), err
	})
}

// tradesCmd lists the ledger.
type tradesCmd struct {
	app  *App
	side string
}

func (*tradesCmd) Name() string     { return "trades" }
func (*tradesCmd) Synopsis() string { return "list recorded trades" }
func (*tradesCmd) Usage() string {
	return `tradectl trades [-side <buy|sell>] [<symbol>]

  Lists trades in the order they were recorded, optionally for one symbol.
`
}

func (c *tradesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.side, "side", "", "only show trades on this side (requires a symbol)")
}

func (c *tradesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 || (c.side != "" && f.NArg() == 0) {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return status(c.run(ctx, f.Arg(0)))
}

func (c *tradesCmd) run(ctx context.Context, symbol string) error {
	path, title := "/trades", "Trades"
	if symbol != "" {
		q := url.Values{}
		if c.side != "" {
			q.Set("side", c.side)
		}
		path = symbolPath("/trades", symbol, q)
		title = "Trades: " + model.NormalizeSymbol(symbol)
	}
	body, err := c.app.Client.Get(ctx, path)
	if err != nil {
		return err
	}
	return c.app.emit(body, func() (string, error) {
		v, err := decode[tradesView](body)
		return tradesMarkdown(title, v, c.app.currency()), err
	})
}

// portfolioCmd shows open holdings.
type portfolioCmd struct{ app *App }

func (*portfolioCmd) Name() string             { return "portfolio" }
func (*portfolioCmd) Synopsis() string         { return "show open holdings at average cost" }
func (*portfolioCmd) Usage() string            { return "tradectl portfolio\n\n  Shows every open holding.\n" }
func (*portfolioCmd) SetFlags(_ *flag.FlagSet) {}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 0 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return status(c.run(ctx))
}

func (c *portfolioCmd) run(ctx context.Context) error {
	body, err := c.app.Client.Get(ctx, "/portfolio")
	if err != nil {
		return err
	}
	return c.app.emit(body, func() (string, error) {
		v, err := decode[portfolioView](body)
		return portfolioMarkdown(v, c.app.currency()), err
	})
}

// pnlCmd shows profit and loss.
type pnlCmd struct{ app *App }

func (*pnlCmd) Name() string     { return "pnl" }
func (*pnlCmd) Synopsis() string { return "show realized and unrealized profit and loss" }
func (*pnlCmd) Usage() string {
	return `tradectl pnl [<symbol>]

  Shows PnL for every open holding, or for one symbol.
`
}
func (*pnlCmd) SetFlags(_ *flag.FlagSet) {}

func (c *pnlCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return status(c.run(ctx, f.Arg(0)))
}

func (c *pnlCmd) run(ctx context.Context, symbol string) error {
	if symbol == "" {
		body, err := c.app.Client.Get(ctx, "/pnl")
		if err != nil {
			return err
		}
		return c.app.emit(body, func() (string, error) {
			v, err := decode[pnlView](body)
			return pnlMarkdown(v, c.app.currency()), err
		})
	}
	body, err := c.app.Client.Get(ctx, symbolPath("/pnl", symbol, nil))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return fmt.Errorf("no open holding in %s", model.NormalizeSymbol(symbol))
		}
		return err
	}
	return c.app.emit(body, func() (string, error) {
		v, err := decode[pnlRowView](body)
		return pnlRowMarkdown(v, c.app.currency()), err
	})
}

// priceCmd shows the current price of an instrument.
type priceCmd struct{ app *App }

func (*priceCmd) Name() string             { return "price" }
func (*priceCmd) Synopsis() string         { return "show the current price of a symbol" }
func (*priceCmd) Usage() string            { return "tradectl price <symbol>\n" }
func (*priceCmd) SetFlags(_ *flag.FlagSet) {}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || strings.TrimSpace(f.Arg(0)) == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	return status(c.run(ctx, f.Arg(0)))
}

func (c *priceCmd) run(ctx context.Context, symbol string) error {
	body, err := c.app.Client.Get(ctx, symbolPath("/prices", symbol, nil))
	if err != nil {
		return err
	}
	return c.app.emit(body, func() (string, error) {
		v, err := decode[priceView](body)
		return priceMarkdown(v, c.app.currency()), err
	})
}
