package report

import (
	"strings"

	"github.com/Rhymond/go-money"

	"github.com/warp/vault-ledger/ledger"
)

// iqd renders amounts the way the vault has always shown them:
// thousands separated by commas, "IQD" after the number.
func iqd(fraction int) *money.Formatter {
	return money.NewFormatter(fraction, ".", ",", "IQD", "1 $")
}

// FormatIQD formats an amount in Iraqi dinar, e.g. "1,250,000 IQD".
// Fractions are shown only when present, up to three digits.
func FormatIQD(m ledger.Money) string {
	d := m.Decimal().Round(3)
	fraction := 0
	if s := d.String(); strings.Contains(s, ".") {
		fraction = len(s) - strings.IndexByte(s, '.') - 1
	}
	return iqd(fraction).Format(d.Shift(int32(fraction)).IntPart())
}
