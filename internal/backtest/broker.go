package backtest

import (
	"fmt"

	"StockPicker/internal/fund"
	"StockPicker/internal/model"
)

// PaperBroker fills queued intents at the next bar's open against an
// Account. Buys reserve cash at the reference price on submission and are
// rejected when the reservation fails.
type PaperBroker struct {
	account    *fund.Account
	commission float64 // fraction of notional
	queue      []queued
}

type queued struct {
	intent   model.OrderIntent
	reserved float64
}

func NewPaperBroker(account *fund.Account, commission float64) *PaperBroker {
	return &PaperBroker{account: account, commission: commission}
}

// Submit accepts or rejects an intent.
func (b *PaperBroker) Submit(intent model.OrderIntent) model.OrderResult {
	res := model.OrderResult{OrderID: intent.ID, Action: intent.Action, Date: intent.Date}
	if intent.Size <= 0 {
		res.Status = model.StatusRejected
		res.Message = "non-positive size"
		return res
	}
	var reserved float64
	if intent.Action == model.ActionBuy {
		reserved = intent.Size * intent.Price * (1 + b.commission)
		if err := b.account.Reserve(reserved); err != nil {
			res.Status = model.StatusRejected
			res.Message = err.Error()
			return res
		}
	}
	b.queue = append(b.queue, queued{intent: intent, reserved: reserved})
	res.Status = model.StatusAccepted
	return res
}

// FillAt executes every queued intent at bar's open.
func (b *PaperBroker) FillAt(bar model.Bar) []model.OrderResult {
	if len(b.queue) == 0 {
		return nil
	}
	out := make([]model.OrderResult, 0, len(b.queue))
	for _, q := range b.queue {
		res := model.OrderResult{OrderID: q.intent.ID, Action: q.intent.Action, Date: bar.Date}
		notional := q.intent.Size * bar.Open
		fee := notional * b.commission
		switch q.intent.Action {
		case model.ActionBuy:
			if err := b.account.SettleBuy(q.reserved, notional+fee); err != nil {
				b.account.Release(q.reserved)
				res.Status = model.StatusRejected
				res.Message = fmt.Sprintf("gap up at open %.4f: %v", bar.Open, err)
				out = append(out, res)
				continue
			}
		case model.ActionSell:
			b.account.Credit(notional - fee)
		}
		res.Status = model.StatusFilled
		res.FilledSize = q.intent.Size
		res.FillPrice = bar.Open
		out = append(out, res)
	}
	b.queue = b.queue[:0]
	return out
}

// ExpireAll drops whatever is still queued when the data runs out.
func (b *PaperBroker) ExpireAll() []model.OrderResult {
	out := make([]model.OrderResult, 0, len(b.queue))
	for _, q := range b.queue {
		if q.reserved > 0 {
			b.account.Release(q.reserved)
		}
		out = append(out, model.OrderResult{
			OrderID: q.intent.ID,
			Action:  q.intent.Action,
			Status:  model.StatusExpired,
			Date:    q.intent.Date,
			Message: "end of data",
		})
	}
	b.queue = b.queue[:0]
	return out
}
