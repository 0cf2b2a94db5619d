package decktree

import (
	"sort"

	"github.com/pbaille/decktags/internal/deckpath"
	"github.com/pbaille/decktags/internal/domain"
)

// Node is one level of the deck tree.
// DeckID is zero for levels that exist only as an ancestor name.
type Node struct {
	Name     string
	Path     deckpath.Path
	DeckID   domain.DeckID
	Children []*Node
}

// Tree groups the indexed decks under their ancestors
func (ix *Index) Tree() []*Node {
	nodes := make(map[string]*Node)
	var roots []*Node

	var ensure func(p deckpath.Path) *Node
	ensure = func(p deckpath.Path) *Node {
		key := p.String()
		if n, ok := nodes[key]; ok {
			return n
		}
		n := &Node{Name: p.Leaf(), Path: p}
		nodes[key] = n
		if parent := p.Parent(); parent.IsZero() {
			roots = append(roots, n)
		} else {
			pn := ensure(parent)
			pn.Children = append(pn.Children, n)
		}
		return n
	}

	for _, id := range ix.IDs() {
		ensure(ix.paths[id]).DeckID = id
	}

	sortNodes(roots)
	return roots
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// Walk visits nodes depth-first, parents before children
func Walk(nodes []*Node, fn func(n *Node, depth int)) {
	var walk func(ns []*Node, depth int)
	walk = func(ns []*Node, depth int) {
		for _, n := range ns {
			fn(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)
}
