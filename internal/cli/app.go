// Package cli implements the tradectl subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/subcommands"
)

// App holds the settings shared by every subcommand. The fields are filled
// from top-level flags before a command runs.
type App struct {
	Client   *Client
	Out      io.Writer
	Currency string

	// JSON prints the raw server response.
	JSON bool
	// Path selects part of the response with a JSONPath expression and
	// prints it as JSON.
	Path string
	// Plain prints markdown without terminal styling.
	Plain bool
	Width int
}

// Commands returns the tradectl subcommands bound to app.
func Commands(app *App) []subcommands.Command {
	return []subcommands.Command{
		&submitCmd{app: app},
		&tradesCmd{app: app},
		&portfolioCmd{app: app},
		&pnlCmd{app: app},
		&priceCmd{app: app},
	}
}

// Register adds the tradectl subcommands to c.
func Register(c *subcommands.Commander, app *App) {
	for _, cmd := range Commands(app) {
		c.Register(cmd, "book")
	}
}

// emit writes a response in the selected output mode. md builds the
// markdown view from the decoded body.
func (a *App) emit(body []byte, md func() (string, error)) error {
	switch {
	case a.Path != "":
		return a.emitPath(body)
	case a.JSON:
		_, err := a.out().Write(append(body, '\n'))
		return err
	}
	text, err := md()
	if err != nil {
		return err
	}
	if !a.Plain {
		width := a.Width
		if width <= 0 {
			width = 100
		}
		if text, err = renderMarkdown(text, width); err != nil {
			return err
		}
	}
	_, err = io.WriteString(a.out(), text)
	return err
}

func (a *App) emitPath(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	val, err := jsonpath.Get(a.Path, doc)
	if err != nil {
		return fmt.Errorf("path %q: %w", a.Path, err)
	}
	enc := json.NewEncoder(a.out())
	enc.SetIndent("", "  ")
	return enc.Encode(val)
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) currency() string {
	if a.Currency == "" {
		return "USD"
	}
	return a.Currency
}

// status reports err on stderr and maps it to an exit status.
func status(err error) subcommands.ExitStatus {
	if err == nil {
		return subcommands.ExitSuccess
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func decode[T any](body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("decode response: %w", err)
	}
	return v, nil
}
