package shape

import "github.com/beevik/etree"

type walkItem struct {
	el        *etree.Element
	parent    *etree.Element
	ancestors []*etree.Element
}

// Walk returns every shape below tree in document order, groups before
// their members. tree is normally the p:spTree of a part.
func Walk(part string, tree *etree.Element) []*Node {
	if tree == nil {
		return nil
	}

	var nodes []*Node
	stack := pushChildren(nil, tree, nil)
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kind := KindOf(item.el)
		if kind == KindUnknown {
			continue
		}
		nodes = append(nodes, &Node{
			Part:      part,
			Element:   item.el,
			Parent:    item.parent,
			Ancestors: item.ancestors,
			Kind:      kind,
		})
		if kind == KindGroup {
			chain := make([]*etree.Element, len(item.ancestors)+1)
			copy(chain, item.ancestors)
			chain[len(item.ancestors)] = item.el
			stack = pushChildren(stack, item.el, chain)
		}
	}
	return nodes
}

// pushChildren pushes the children of parent in reverse so they pop in
// document order.
func pushChildren(stack []walkItem, parent *etree.Element, ancestors []*etree.Element) []walkItem {
	children := parent.ChildElements()
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, walkItem{el: children[i], parent: parent, ancestors: ancestors})
	}
	return stack
}

// Pictures filters nodes down to pictures, keeping document order.
func Pictures(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Kind == KindPicture {
			out = append(out, n)
		}
	}
	return out
}
