// Marquee - Learning-to-Rank Pipeline and Online Content Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package ranking

import "sort"

// Catalog is the read-only reference set of users and items.
// It is built once and never mutated, so it is safe for concurrent readers.
type Catalog struct {
	users   map[string]User
	items   map[string]Item
	itemIDs []string
}

// NewCatalog indexes users and items. Later duplicates replace earlier ones.
func NewCatalog(users []User, items []Item) *Catalog {
	c := &Catalog{
		users: make(map[string]User, len(users)),
		items: make(map[string]Item, len(items)),
	}
	for _, u := range users {
		c.users[u.UserID] = u
	}
	for _, it := range items {
		c.items[it.ItemID] = it
	}
	c.itemIDs = make([]string, 0, len(c.items))
	for id := range c.items {
		c.itemIDs = append(c.itemIDs, id)
	}
	sort.Strings(c.itemIDs)
	return c
}

// User looks up a user by id.
func (c *Catalog) User(id string) (User, bool) {
	u, ok := c.users[id]
	return u, ok
}

// Item looks up an item by id.
func (c *Catalog) Item(id string) (Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

// ItemIDs returns every item id sorted ascending. The slice must not be modified.
func (c *Catalog) ItemIDs() []string {
	return c.itemIDs
}

// NumUsers returns the number of users.
func (c *Catalog) NumUsers() int { return len(c.users) }

// NumItems returns the number of items.
func (c *Catalog) NumItems() int { return len(c.items) }
