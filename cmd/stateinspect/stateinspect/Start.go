// Package stateinspect prints the tip, balances, unspent outputs and transactions of addresses
// from a finalized store.
package stateinspect

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"

	"github.com/niklaslong/zebra/errors"
	"github.com/niklaslong/zebra/model"
	"github.com/niklaslong/zebra/settings"
	"github.com/niklaslong/zebra/stores/finalized"
	"github.com/niklaslong/zebra/stores/finalized/factory"
	"github.com/niklaslong/zebra/ulogger"
	"github.com/urfave/cli/v2"
)

// Inspector writes what it reads from a finalized store to out.
type Inspector struct {
	store finalized.Store
	out   io.Writer
}

func NewInspector(store finalized.Store, out io.Writer) *Inspector {
	return &Inspector{store: store, out: out}
}

func (i *Inspector) Tip(ctx context.Context) error {
	tip, err := i.store.Tip(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			_, err = fmt.Fprintln(i.out, "empty")
		}

		return err
	}

	_, err = fmt.Fprintf(i.out, "height %d hash %s\n", tip.Height, tip.Hash)

	return err
}

func (i *Inspector) Balance(ctx context.Context, addr model.Address) error {
	balance, err := i.store.AddressBalance(ctx, addr)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(i.out, "%s %d\n", addr, balance.Int64())

	return err
}

func (i *Inspector) Utxos(ctx context.Context, addr model.Address) error {
	utxos, err := i.store.AddressUtxos(ctx, addr)
	if err != nil {
		return err
	}

	for _, utxo := range utxos {
		if _, err = fmt.Fprintf(i.out, "%s:%d %d at %s\n", utxo.OutPoint.Hash, utxo.OutPoint.Index, utxo.Output.Satoshis, utxo.Location); err != nil {
			return err
		}
	}

	return nil
}

func (i *Inspector) TxIDs(ctx context.Context, addr model.Address, fromHeight, toHeight uint32) error {
	txs, err := i.store.AddressTxIDs(ctx, addr, fromHeight, toHeight)
	if err != nil {
		return err
	}

	for _, tx := range txs {
		if _, err = fmt.Fprintf(i.out, "%s at %s\n", tx.TxID, tx.Location); err != nil {
			return err
		}
	}

	return nil
}

// Start runs the command line in args against the store named by --store, or the configured
// finalized store.
func Start(args []string, out io.Writer) error {
	logger := ulogger.New("stateinspect")
	tSettings := settings.NewSettings()

	err := NewApp(logger, tSettings, out).Run(args)
	if err != nil {
		logger.Errorf("%v", err)
	}

	return err
}

func NewApp(logger ulogger.Logger, tSettings *settings.Settings, out io.Writer) *cli.App {
	// with opens the store for one command and closes it afterwards
	with := func(action func(ctx context.Context, inspector *Inspector, c *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			var storeURL *url.URL

			if raw := c.String("store"); raw != "" {
				parsed, err := url.Parse(raw)
				if err != nil {
					return errors.NewConfigurationError("invalid store url %q", raw, err)
				}

				storeURL = parsed
			}

			store, err := factory.NewStore(logger, tSettings, storeURL)
			if err != nil {
				return err
			}

			defer func() {
				_ = store.Close()
			}()

			return action(c.Context, NewInspector(store, out), c)
		}
	}

	address := func(c *cli.Context) (model.Address, error) {
		if c.NArg() != 1 {
			return "", errors.NewInvalidArgumentError("expected one address, got %d arguments", c.NArg())
		}

		return model.Address(c.Args().First()), nil
	}

	return &cli.App{
		Name:      "stateinspect",
		Usage:     "Read the finalized chain state",
		Writer:    out,
		ErrWriter: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Usage: "finalized store url, defaults to state_finalizedStore",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "tip",
				Usage: "Print the finalized tip",
				Action: with(func(ctx context.Context, inspector *Inspector, _ *cli.Context) error {
					return inspector.Tip(ctx)
				}),
			},
			{
				Name:      "balance",
				Usage:     "Print the finalized balance of an address",
				ArgsUsage: "<address>",
				Action: with(func(ctx context.Context, inspector *Inspector, c *cli.Context) error {
					addr, err := address(c)
					if err != nil {
						return err
					}

					return inspector.Balance(ctx, addr)
				}),
			},
			{
				Name:      "utxos",
				Usage:     "Print the finalized unspent outputs of an address",
				ArgsUsage: "<address>",
				Action: with(func(ctx context.Context, inspector *Inspector, c *cli.Context) error {
					addr, err := address(c)
					if err != nil {
						return err
					}

					return inspector.Utxos(ctx, addr)
				}),
			},
			{
				Name:      "txids",
				Usage:     "Print the finalized transactions of an address",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "from", Usage: "first height"},
					&cli.UintFlag{Name: "to", Usage: "last height", Value: math.MaxUint32},
				},
				Action: with(func(ctx context.Context, inspector *Inspector, c *cli.Context) error {
					addr, err := address(c)
					if err != nil {
						return err
					}

					return inspector.TxIDs(ctx, addr, uint32(c.Uint("from")), uint32(c.Uint("to")))
				}),
			},
		},
	}
}
