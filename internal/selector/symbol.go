package selector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"riskgate/internal/models"
)

// FormatSymbol renders the deterministic contract symbol
// <UNDERLYING>_<MMDDYY><C|P><STRIKE>. Fractional strikes replace the
// decimal point with "p" and drop trailing zeros, so 480 -> "480" and
// 480.50 -> "480p5".
func FormatSymbol(underlying string, expiry time.Time, right models.OptionRight, strike float64) string {
	r := "C"
	if right == models.RightPut {
		r = "P"
	}
	k := strconv.FormatFloat(strike, 'f', -1, 64)
	k = strings.ReplaceAll(k, ".", "p")
	return fmt.Sprintf("%s_%s%s%s", underlying, expiry.Format("010206"), r, k)
}
