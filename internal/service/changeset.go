package service

import (
	"fmt"

	"ledgerpos/backend/internal/ledger"
	"ledgerpos/backend/internal/store"
)

// changeSet tracks which records an operation touched so that only those are
// written back.
type changeSet struct {
	upserts map[string][]string
	deletes map[string][]string
	seen    map[string]struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{
		upserts: make(map[string][]string, len(store.Collections)),
		deletes: make(map[string][]string, len(store.Collections)),
		seen:    make(map[string]struct{}),
	}
}

func (c *changeSet) upsert(collection string, id string) {
	key := "u/" + collection + "/" + id
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.upserts[collection] = append(c.upserts[collection], id)
}

func (c *changeSet) remove(collection string, id string) {
	key := "d/" + collection + "/" + id
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.deletes[collection] = append(c.deletes[collection], id)
}

// ids returns every id touched in collection, upserted or deleted.
func (c *changeSet) ids(collection string) []string {
	out := make([]string, 0, len(c.upserts[collection])+len(c.deletes[collection]))
	out = append(out, c.upserts[collection]...)
	out = append(out, c.deletes[collection]...)
	return out
}

func (c *changeSet) summary() map[string]int {
	out := make(map[string]int, len(store.Collections))
	for _, name := range store.Collections {
		if n := len(c.upserts[name]) + len(c.deletes[name]); n > 0 {
			out[name] = n
		}
	}
	return out
}

func (c *changeSet) documents(s *ledger.State) ([]store.Document, error) {
	docs := make([]store.Document, 0, len(store.Collections))
	for _, name := range store.Collections {
		doc := store.Document{Collection: name, Deletes: c.deletes[name]}
		for _, id := range c.upserts[name] {
			value, ok := recordValue(s, name, id)
			if !ok {
				continue
			}
			rec, err := store.NewRecord(id, value)
			if err != nil {
				return nil, fmt.Errorf("encode %s/%s: %w", name, id, err)
			}
			doc.Upserts = append(doc.Upserts, rec)
		}
		if len(doc.Upserts) == 0 && len(doc.Deletes) == 0 {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func recordValue(s *ledger.State, collection string, id string) (any, bool) {
	switch collection {
	case store.CollectionProducts:
		p, ok := s.Products[id]
		return p, ok
	case store.CollectionCustomers:
		c, ok := s.Customers[id]
		return c, ok
	case store.CollectionPurchases:
		if i := s.PurchaseIndex(id); i >= 0 {
			return s.Purchases[i], true
		}
	case store.CollectionSales:
		if i := s.SaleIndex(id); i >= 0 {
			return s.Sales[i], true
		}
	case store.CollectionPayments:
		if i := s.PaymentIndex(id); i >= 0 {
			return s.Payments[i], true
		}
	}
	return nil, false
}
