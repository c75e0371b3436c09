package chat

import (
	"github.com/samber/lo"
)

// ReactionAction is either add or remove.
type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

// ReactionGroup is the users that reacted with one symbol.
type ReactionGroup struct {
	Symbol string   `json:"symbol"`
	Count  int      `json:"count"`
	Users  []string `json:"users"`
}

// Reactions keeps symbols in the order they were first added to a message.
// A user holds at most one symbol at a time.
type Reactions []ReactionGroup

func (r Reactions) index(symbol string) int {
	_, i, ok := lo.FindIndexOf(r, func(g ReactionGroup) bool { return g.Symbol == symbol })
	if !ok {
		return -1
	}
	return i
}

// Add puts username on symbol after removing them from every other symbol.
func (r Reactions) Add(symbol, username string) Reactions {
	out := make(Reactions, 0, len(r)+1)
	for _, g := range r {
		users := lo.Without(g.Users, username)
		if len(users) == 0 {
			continue
		}
		out = append(out, ReactionGroup{Symbol: g.Symbol, Count: len(users), Users: users})
	}
	if i := out.index(symbol); i >= 0 {
		out[i].Users = append(out[i].Users, username)
		out[i].Count = len(out[i].Users)
		return out
	}
	return append(out, ReactionGroup{Symbol: symbol, Count: 1, Users: []string{username}})
}

// Remove takes username off symbol only. Removing a reaction the user does
// not hold changes nothing.
func (r Reactions) Remove(symbol, username string) Reactions {
	i := r.index(symbol)
	if i < 0 || !lo.Contains(r[i].Users, username) {
		return r
	}
	users := lo.Without(r[i].Users, username)
	if len(users) == 0 {
		return append(r[:i:i], r[i+1:]...)
	}
	out := r.clone()
	out[i] = ReactionGroup{Symbol: symbol, Count: len(users), Users: users}
	return out
}

// SymbolOf returns the symbol username currently holds, if any.
func (r Reactions) SymbolOf(username string) (string, bool) {
	g, ok := lo.Find(r, func(g ReactionGroup) bool { return lo.Contains(g.Users, username) })
	return g.Symbol, ok
}

func (r Reactions) clone() Reactions {
	if r == nil {
		return Reactions{}
	}
	return lo.Map(r, func(g ReactionGroup, _ int) ReactionGroup {
		return ReactionGroup{Symbol: g.Symbol, Count: g.Count, Users: append([]string(nil), g.Users...)}
	})
}
