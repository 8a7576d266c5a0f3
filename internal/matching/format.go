package matching

import (
	"fmt"
	"strconv"
	"strings"
)

// Text renders msg in its canonical CSV-shaped textual form, for logging
// and for scenario tests to assert against. This is formatting only —
// struct to string — no CSV parsing lives anywhere in this module; a
// real ingress/egress transport owns that.
func (m OutputMessage) Text() string {
	var b strings.Builder
	switch m.Kind {
	case AckMsg:
		fmt.Fprintf(&b, "A, %s, %d, %d", m.Symbol, m.UserID, m.UserOrderID)
	case CancelAckMsg:
		fmt.Fprintf(&b, "C, %s, %d, %d", m.Symbol, m.UserID, m.UserOrderID)
	case TradeMsg:
		fmt.Fprintf(&b, "T, %s, %d, %d, %d, %d, %d, %d",
			m.Symbol, m.BuyUserID, m.BuyUserOrderID, m.SellUserID, m.SellUserOrderID, m.Price, m.Quantity)
	case TopOfBookMsg:
		price, qty := priceQtyText(m)
		fmt.Fprintf(&b, "B, %s, %s, %s, %s", m.Symbol, m.Side, price, qty)
	}
	return b.String()
}

func priceQtyText(m OutputMessage) (string, string) {
	if m.Eliminated {
		return "-", "-"
	}
	return strconv.FormatUint(uint64(m.Price), 10), strconv.FormatUint(uint64(m.TotalQty), 10)
}
