package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulpemventures/go-polyderive/address"
	"github.com/vulpemventures/go-polyderive/analyzer"
	"github.com/vulpemventures/go-polyderive/explorer"
	"github.com/vulpemventures/go-polyderive/factorsource"
	"github.com/vulpemventures/go-polyderive/hdsigner"
	"github.com/vulpemventures/go-polyderive/network"
	"github.com/vulpemventures/go-polyderive/polyderive"
)

type oarsFlags struct {
	Mnemonics       []string
	LedgerMnemonics []string
	Passphrase      string
	UsedFile        string
	ExplorerURL     string
}

func newOARSCmd(e *env) *cobra.Command {
	f := &oarsFlags{}

	cmd := &cobra.Command{
		Use:   "oars",
		Short: "Run the onboarding account recovery scan",
		Long: `Derive the first batch of account keys of every factor source, report
the accounts found in use and persist the unused keys in the instance cache.

Used addresses are read from a file with one bech32 address per line, or
looked up on a block explorer when --explorer-url is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOARS(cmd, e, f)
		},
	}

	cmd.Flags().StringArrayVar(&f.Mnemonics, "mnemonic", nil, "BIP39 mnemonic of a device factor source")
	cmd.Flags().StringArrayVar(&f.LedgerMnemonics, "ledger-mnemonic", nil, "BIP39 mnemonic of a ledger factor source")
	cmd.Flags().StringVar(&f.Passphrase, "passphrase", "", "BIP39 passphrase")
	cmd.Flags().StringVar(&f.UsedFile, "used", "", "file of addresses used on ledger")
	cmd.Flags().StringVar(&f.ExplorerURL, "explorer-url", "", "mainnet block explorer REST API url")
	cmd.MarkFlagsMutuallyExclusive("used", "explorer-url")
	return cmd
}

func runOARS(cmd *cobra.Command, e *env, f *oarsFlags) error {
	var signers []*hdsigner.Signer
	add := func(mnemonics []string, kind factorsource.Kind) error {
		for i, m := range mnemonics {
			s, err := hdsigner.NewSigner(m, f.Passphrase, kind, fmt.Sprintf("%s-%d", kind, i))
			if err != nil {
				return err
			}
			signers = append(signers, s)
		}
		return nil
	}
	if err := add(f.Mnemonics, factorsource.Device); err != nil {
		return err
	}
	if err := add(f.LedgerMnemonics, factorsource.Ledger); err != nil {
		return err
	}
	if len(signers) == 0 {
		return fmt.Errorf("at least one --mnemonic or --ledger-mnemonic is required")
	}

	var gw analyzer.Gateway
	if f.ExplorerURL != "" {
		gw = explorer.New(explorer.WithNetwork(network.MainnetID, f.ExplorerURL))
	} else {
		used, err := loadUsedAddresses(f.UsedFile)
		if err != nil {
			return err
		}
		gw = used
	}
	onChain, err := analyzer.NewOnChain(gw, analyzer.WithLogger(e.logger.Named("analyzer")))
	if err != nil {
		return err
	}
	defer onChain.Close()

	store, err := e.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := store.Load()
	if err != nil {
		return err
	}

	provider := hdsigner.NewProvider(e.logger.Named("hdsigner"), signers...)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p, c, err := polyderive.RecoverOnboarding(
		ctx, provider.FactorSources(), provider, onChain,
		polyderive.WithCache(c),
		polyderive.WithConfig(e.config),
		polyderive.WithLogger(e.logger.Named("polyderive")),
	)
	if err != nil {
		return err
	}
	if err := store.Save(c); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "factor sources: %d\n", len(p.FactorSources()))
	for _, fs := range p.FactorSources() {
		fmt.Fprintf(out, "  %s\n", fs.ID)
	}
	fmt.Fprintf(out, "accounts: %d\n", len(p.Accounts()))
	for _, acc := range p.Accounts() {
		fmt.Fprintf(out, "  %s %s\n", acc.Address(), acc.FactorInstances()[0].Path)
	}
	fmt.Fprintf(out, "cached instances: %d\n", c.Len())
	return nil
}

// usedAddresses is a gateway answering from a fixed set of addresses.
type usedAddresses map[address.AccountAddress]struct{}

func (u usedAddresses) UsedAddresses(
	_ context.Context,
	_ network.ID,
	addrs []address.AccountAddress,
) ([]address.AccountAddress, error) {
	var out []address.AccountAddress
	for _, a := range addrs {
		if _, ok := u[a]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// loadUsedAddresses reads one address per line. Blank lines and lines
// starting with # are skipped.
func loadUsedAddresses(path string) (usedAddresses, error) {
	used := make(usedAddresses)
	if path == "" {
		return used, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open used addresses: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		addr, err := address.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		used[addr] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read used addresses: %w", err)
	}
	return used, nil
}
