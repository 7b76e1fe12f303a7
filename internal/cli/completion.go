package cli

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

var symbols = predict.Set{"BTC", "ETH", "XRP", "SOL", "DOGE", "SHIB", "DOT"}

// Completion describes tradectl for shell completion. Run
// "COMP_INSTALL=1 tradectl" to install it.
func Completion() *complete.Command {
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"addr":     predict.Something,
			"currency": predict.Set{"USD", "EUR", "GBP", "JPY", "CHF"},
			"json":     predict.Nothing,
			"path":     predict.Something,
			"plain":    predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"submit": {
				Flags: map[string]complete.Predictor{
					"otp":        predict.Something,
					"otp-secret": predict.Something,
				},
				Args: predict.Set{"buy", "sell"},
			},
			"trades": {
				Flags: map[string]complete.Predictor{"side": predict.Set{"buy", "sell"}},
				Args:  symbols,
			},
			"portfolio": {},
			"pnl":       {Args: symbols},
			"price":     {Args: symbols},
		},
	}
}
