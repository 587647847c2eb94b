package trial

import (
	"fmt"
	"strings"
)

type Tone string

const (
	ToneNone    Tone = ""
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

type stateStyle struct {
	visible  bool
	blocking bool
	tone     Tone
}

var stateStyles = map[State]stateStyle{
	Hidden:      {},
	ActiveTrial: {visible: true, tone: ToneInfo},
	Expired:     {visible: true, blocking: true, tone: ToneDanger},
}

// lastDays switches the active-trial banner to the warning tone.
const lastDays = 3

// Pricing is the plan price in minor units, e.g. 5999 MYR per month.
type Pricing struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Interval string `json:"interval"`
}

var currencySymbols = map[string]string{
	"MYR": "RM",
	"USD": "$",
	"SGD": "S$",
	"EUR": "€",
	"GBP": "£",
}

// Label renders the price as shown to tenants, e.g. "RM59.99/month".
func (p Pricing) Label() string {
	code := strings.ToUpper(p.Currency)
	symbol, ok := currencySymbols[code]
	if !ok {
		symbol = code + " "
	}

	amount := p.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	label := fmt.Sprintf("%s%s%d.%02d", sign, symbol, amount/100, amount%100)
	if p.Interval != "" {
		label += "/" + p.Interval
	}
	return label
}

// Banner is the display metadata for a trial status.
type Banner struct {
	State        State  `json:"state"`
	Visible      bool   `json:"visible"`
	Blocking     bool   `json:"blocking"`
	Tone         Tone   `json:"tone,omitempty"`
	Message      string `json:"message,omitempty"`
	DaysLeft     int    `json:"daysLeft,omitempty"`
	PriceLabel   string `json:"priceLabel,omitempty"`
	SubscribeURL string `json:"subscribeUrl,omitempty"`
}

// HiddenBanner is rendered for subscribed tenants and whenever the status is unknown.
func HiddenBanner() Banner {
	return Banner{State: Hidden}
}

func RenderBanner(s TrialStatus, pricing Pricing, subscribeURL string) Banner {
	state := StateOf(s)
	style := stateStyles[state]
	if !style.visible {
		return HiddenBanner()
	}

	price := pricing.Label()
	b := Banner{
		State:        state,
		Visible:      true,
		Blocking:     style.blocking,
		Tone:         style.tone,
		PriceLabel:   price,
		SubscribeURL: subscribeURL,
	}

	switch state {
	case ActiveTrial:
		b.DaysLeft = s.DaysLeft
		if s.DaysLeft <= lastDays {
			b.Tone = ToneWarning
		}
		b.Message = fmt.Sprintf("%s left in your free trial. Subscribe to keep access (%s)", pluralDays(s.DaysLeft), price)
	case Expired:
		b.Message = fmt.Sprintf("Your free trial has ended. Subscribe to continue using the CRM (%s)", price)
	}

	return b
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}
