package book

import (
	"fmt"

	"mercury/domain/market"
)

// PriceLevel holds all resting orders at one price, oldest at the head.
// Queue order is arrival order; matching always consumes from the head.
type PriceLevel struct {
	Price    market.Price
	TotalQty market.Quantity

	head, tail *Order
}

// Enqueue appends an order at the tail, behind every earlier arrival.
func (lvl *PriceLevel) Enqueue(o *Order) {
	if lvl.tail != nil {
		lvl.tail.next = o
		o.prev = lvl.tail
	} else {
		lvl.head = o
	}
	lvl.tail = o
	lvl.TotalQty += o.Remaining
	o.level = lvl
}

// Head returns the oldest order at this price, nil if the level is empty.
func (lvl *PriceLevel) Head() *Order { return lvl.head }

// Unlink splices an order out of the queue in O(1). The caller adjusts
// TotalQty for partial fills before calling; Unlink removes whatever
// Remaining the order still carries.
func (lvl *PriceLevel) Unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		lvl.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		lvl.tail = o.prev
	}
	lvl.TotalQty -= o.Remaining
	o.next, o.prev, o.level = nil, nil, nil
}

// Empty reports whether no orders rest at this price.
func (lvl *PriceLevel) Empty() bool { return lvl.head == nil }

// Level returns the aggregated view published to market data.
func (lvl *PriceLevel) Level() market.BookLevel {
	return market.BookLevel{Price: lvl.Price, Qty: lvl.TotalQty}
}

func (lvl *PriceLevel) String() string {
	count := 0
	for o := lvl.head; o != nil; o = o.next {
		count++
	}
	return fmt.Sprintf("PriceLevel{Price=%d, Orders=%d, TotalQty=%d}", lvl.Price, count, lvl.TotalQty)
}
