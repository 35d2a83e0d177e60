package calculator

import (
	"container/heap"

	"github.com/shopspring/decimal"
)

// Transaction is one payment instruction: PayerID (a debtor) pays Amount to
// PayeeID (a creditor).
type Transaction struct {
	PayerID string
	PayeeID string
	Amount  float64
}

// Simplify reduces net balances to a list of direct payments that zero them out.
//
// Debtors and creditors are matched greedily, largest debt against largest credit,
// ties broken by ascending member ID. Each round fully clears at least one side, so
// at most (unsettled members - 1) transactions are emitted. The count is not always
// the global minimum; that would need a subset-sum search.
//
// Balances within Epsilon of zero are treated as settled.
func Simplify(balances map[string]float64) []Transaction {
	debtors, creditors := classify(balances)

	var txns []Transaction
	for debtors.Len() > 0 && creditors.Len() > 0 {
		debtor := heap.Pop(debtors).(party)
		creditor := heap.Pop(creditors).(party)

		amount := decimal.Min(debtor.amount, creditor.amount).Round(2)
		if amount.IsPositive() {
			txns = append(txns, Transaction{
				PayerID: debtor.id,
				PayeeID: creditor.id,
				Amount:  amount.InexactFloat64(),
			})
		}

		debtor.amount = debtor.amount.Sub(amount).Round(2)
		creditor.amount = creditor.amount.Sub(amount).Round(2)

		if debtor.amount.GreaterThan(epsilon) {
			heap.Push(debtors, debtor)
		}
		if creditor.amount.GreaterThan(epsilon) {
			heap.Push(creditors, creditor)
		}
	}

	return txns
}

// classify splits balances into debtor and creditor queues holding absolute
// outstanding amounts.
func classify(balances map[string]float64) (*partyQueue, *partyQueue) {
	debtors := &partyQueue{}
	creditors := &partyQueue{}

	for id, b := range balances {
		amount := toMoney(b)
		switch {
		case amount.LessThan(epsilon.Neg()):
			*debtors = append(*debtors, party{id: id, amount: amount.Neg()})
		case amount.GreaterThan(epsilon):
			*creditors = append(*creditors, party{id: id, amount: amount})
		}
	}

	heap.Init(debtors)
	heap.Init(creditors)
	return debtors, creditors
}

type party struct {
	id     string
	amount decimal.Decimal
}

// partyQueue is a max-heap on amount, then min on id.
type partyQueue []party

func (q partyQueue) Len() int { return len(q) }

func (q partyQueue) Less(i, j int) bool {
	if c := q[i].amount.Cmp(q[j].amount); c != 0 {
		return c > 0
	}
	return q[i].id < q[j].id
}

func (q partyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *partyQueue) Push(x any) { *q = append(*q, x.(party)) }

func (q *partyQueue) Pop() any {
	old := *q
	n := len(old)
	p := old[n-1]
	*q = old[:n-1]
	return p
}
