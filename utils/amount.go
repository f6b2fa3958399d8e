package utils

import "fmt"

// AmountPerUnit is the number of base units (lamports) in one display
// unit of stake.
const AmountPerUnit = 1_000_000_000

// FormatAmount renders a base-unit amount as a decimal display amount,
// e.g. 1500000000 -> "1.500000000".
func FormatAmount(amount uint64) string {
	return fmt.Sprintf("%d.%09d", amount/AmountPerUnit, amount%AmountPerUnit)
}
