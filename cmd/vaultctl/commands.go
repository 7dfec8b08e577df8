package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/warp/vault-ledger/access"
	"github.com/warp/vault-ledger/engine"
	"github.com/warp/vault-ledger/ledger"
	"github.com/warp/vault-ledger/report"
	"github.com/warp/vault-ledger/store/jsonfile"
	"github.com/warp/vault-ledger/store/sqlite"
)

var commands = []subcommands.Command{
	&verifyCmd{out: os.Stdout},
	&reportCmd{out: os.Stdout},
	&exportCmd{},
	&seedCmd{},
	&hashCmd{out: os.Stdout},
}

// =============================================================================
// verify
// =============================================================================

type verifyCmd struct {
	file string
	out  io.Writer
}

func (*verifyCmd) Name() string     { return "verify" }
func (*verifyCmd) Synopsis() string { return "check the structural invariants of a state file" }
func (*verifyCmd) Usage() string {
	return `vaultctl verify -f <file>

  Reads an export or snapshot file and reports every broken invariant.
  Exits non-zero when anything is found.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "vault.json", "State or snapshot file.")
}

func (c *verifyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	state, err := jsonfile.ReadState(c.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	fmt.Fprintf(c.out, "vault:    %s\n", report.FormatIQD(state.VaultBalance))
	fmt.Fprintf(c.out, "baseline: %s\n", report.FormatIQD(ledger.Baseline(state)))
	violations := ledger.CheckInvariants(state)
	for _, v := range violations {
		fmt.Fprintln(c.out, v)
	}
	if len(violations) > 0 {
		fmt.Fprintf(c.out, "%d violation(s)\n", len(violations))
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, "ok")
	return subcommands.ExitSuccess
}

// =============================================================================
// report
// =============================================================================

type reportCmd struct {
	file   string
	viewer string
	filter report.Filter
	kind   string
	user   int64
	out    io.Writer
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print an activity report from a state file" }
func (*reportCmd) Usage() string {
	return `vaultctl report -f <file> [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-type <kind>] [-user <id>] [-as <username>]

  Prints the matching activity entries and their income, expense and net
  totals, as the given user would see them (the first owner by default).
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "vault.json", "State or snapshot file.")
	f.StringVar(&c.viewer, "as", "", "Username to report as.")
	f.StringVar(&c.filter.From, "from", "", "First day, inclusive.")
	f.StringVar(&c.filter.To, "to", "", "Last day, inclusive.")
	f.StringVar(&c.kind, "type", "", "Log entry type, e.g. add_money.")
	f.Int64Var(&c.user, "user", 0, "Only entries involving this user id.")
}

func (c *reportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	state, err := jsonfile.ReadState(c.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	viewer, ok := findViewer(state, c.viewer)
	if !ok {
		fmt.Fprintf(os.Stderr, "no such user %q\n", c.viewer)
		return subcommands.ExitFailure
	}

	c.filter.Kind = ledger.Kind(c.kind)
	c.filter.UserID = ledger.ID(c.user)
	rep, err := report.Build(viewer, state, c.filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	for _, e := range rep.Entries {
		fmt.Fprintf(c.out, "%s  %-18s %18s  %s\n", e.Date, e.Kind, report.FormatIQD(e.Amount), e.Description)
	}
	fmt.Fprintf(c.out, "\nincome:   %s\nexpenses: %s\nnet:      %s\n",
		report.FormatIQD(rep.Totals.Income),
		report.FormatIQD(rep.Totals.Expenses),
		report.FormatIQD(rep.Totals.Net))
	return subcommands.ExitSuccess
}

// findViewer resolves a username, or the first owner when empty.
func findViewer(s ledger.State, username string) (ledger.User, bool) {
	for _, u := range s.Users {
		if username == "" && u.Role == ledger.RoleOwner {
			return u, true
		}
		if username != "" && strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return ledger.User{}, false
}

// =============================================================================
// export
// =============================================================================

type exportCmd struct {
	db      string
	out     string
	version uint64
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a stored snapshot to a JSON file" }
func (*exportCmd) Usage() string {
	return `vaultctl export -db <sqlite> -o <file> [-version N]

  Writes the latest (or the given) stored version as a state file that
  the server can import or seed from.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.db, "db", "vault.db", "SQLite database path.")
	f.StringVar(&c.out, "o", "vault.json", "Output file.")
	f.Uint64Var(&c.version, "version", 0, "Version to export; latest when 0.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	store, err := sqlite.New(c.db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	var snap engine.Snapshot
	if c.version == 0 {
		snap, err = store.Latest(ctx)
	} else {
		snap, err = store.Snapshot(ctx, c.version)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := jsonfile.WriteState(c.out, snap.State); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "exported version %d to %s\n", snap.Version, c.out)
	return subcommands.ExitSuccess
}

// =============================================================================
// seed
// =============================================================================

type seedCmd struct {
	out      string
	password string
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "write the default seed state" }
func (*seedCmd) Usage() string {
	return `vaultctl seed -o <file> [-password <pw>]

  Writes a state with a single owner "admin". With -password the owner's
  password is stored as a bcrypt hash instead of the default "admin".
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "seed.json", "Output file.")
	f.StringVar(&c.password, "password", "", "Owner password.")
}

func (c *seedCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	state := access.DefaultSeed()
	if c.password != "" {
		hash, err := engine.HashPassword(c.password)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		state.Users[0].Password = hash
	}
	if err := jsonfile.WriteState(c.out, state); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// =============================================================================
// hash-password
// =============================================================================

type hashCmd struct {
	out io.Writer
}

func (*hashCmd) Name() string           { return "hash-password" }
func (*hashCmd) Synopsis() string       { return "print a bcrypt hash for a user password" }
func (*hashCmd) Usage() string          { return "vaultctl hash-password <password>\n" }
func (*hashCmd) SetFlags(*flag.FlagSet) {}

func (c *hashCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	hash, err := engine.HashPassword(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, hash)
	return subcommands.ExitSuccess
}
