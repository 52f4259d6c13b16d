package shape

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	// NamespacePML is the PresentationML main namespace.
	NamespacePML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	// NamespaceDML is the DrawingML main namespace.
	NamespaceDML = "http://schemas.openxmlformats.org/drawingml/2006/main"
	// NamespaceRelationships is the namespace of r:embed and r:id attributes.
	NamespaceRelationships = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// Kind identifies the shape element a Node wraps.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlain
	KindGroup
	KindConnector
	KindPicture
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindGroup:
		return "group"
	case KindConnector:
		return "connector"
	case KindPicture:
		return "picture"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// KindOf reports the shape kind of el, or KindUnknown when el is not a
// PresentationML shape element.
func KindOf(el *etree.Element) Kind {
	if el == nil {
		return KindUnknown
	}
	var k Kind
	switch el.Tag {
	case "sp":
		k = KindPlain
	case "grpSp":
		k = KindGroup
	case "cxnSp":
		k = KindConnector
	case "pic":
		k = KindPicture
	case "graphicFrame":
		k = KindFrame
	default:
		return KindUnknown
	}
	if !isPML(el) {
		return KindUnknown
	}
	return k
}

// isPML accepts elements bound to the PresentationML namespace, and the
// conventional "p" prefix when the declaration is out of reach.
func isPML(el *etree.Element) bool {
	uri := el.NamespaceURI()
	if uri == "" {
		return el.Space == "p"
	}
	return uri == NamespacePML
}

// Node is one shape found while walking a shape tree.
type Node struct {
	// Part is the package path of the part the shape lives in.
	Part string
	// Element is the shape element itself.
	Element *etree.Element
	// Parent is the element the shape is a direct child of: the spTree
	// or the enclosing group.
	Parent *etree.Element
	// Ancestors lists the enclosing groups, outermost first.
	Ancestors []*etree.Element
	Kind      Kind
}

// NewNode builds a Node for an element already attached to a shape tree,
// deriving the ancestor chain from the element's parents.
func NewNode(part string, el *etree.Element) *Node {
	n := &Node{Part: part, Element: el, Parent: el.Parent(), Kind: KindOf(el)}
	for p := el.Parent(); p != nil; p = p.Parent() {
		if KindOf(p) == KindGroup {
			n.Ancestors = append([]*etree.Element{p}, n.Ancestors...)
		}
	}
	return n
}

// Properties returns the shape's p:cNvPr element.
func (n *Node) Properties() *etree.Element {
	for _, c := range n.Element.ChildElements() {
		if strings.HasPrefix(c.Tag, "nv") {
			return Child(c, "cNvPr")
		}
	}
	return nil
}

// ID returns the cNvPr id, or 0 when absent.
func (n *Node) ID() int {
	props := n.Properties()
	if props == nil {
		return 0
	}
	id, _ := strconv.Atoi(props.SelectAttrValue("id", ""))
	return id
}

// Name returns the cNvPr name.
func (n *Node) Name() string {
	props := n.Properties()
	if props == nil {
		return ""
	}
	return props.SelectAttrValue("name", "")
}

// Label identifies the shape in logs and reports.
func (n *Node) Label() string {
	return n.Kind.String() + "#" + strconv.Itoa(n.ID()) + " " + strconv.Quote(n.Name())
}

// Annotation returns the alternative-text title of the shape, falling back
// to its description.
func (n *Node) Annotation() string {
	props := n.Properties()
	if props == nil {
		return ""
	}
	if title := strings.TrimSpace(props.SelectAttrValue("title", "")); title != "" {
		return title
	}
	return strings.TrimSpace(props.SelectAttrValue("descr", ""))
}

// Hidden reports whether the shape is marked hidden.
func (n *Node) Hidden() bool {
	props := n.Properties()
	if props == nil {
		return false
	}
	v := strings.ToLower(props.SelectAttrValue("hidden", ""))
	return v == "1" || v == "true"
}

// PlaceholderType returns the p:ph type of a placeholder shape. Body
// placeholders without an explicit type report "body". Non-placeholders
// report "".
func (n *Node) PlaceholderType() string {
	for _, c := range n.Element.ChildElements() {
		if !strings.HasPrefix(c.Tag, "nv") {
			continue
		}
		nvPr := Child(c, "nvPr")
		if nvPr == nil {
			return ""
		}
		ph := Child(nvPr, "ph")
		if ph == nil {
			return ""
		}
		return ph.SelectAttrValue("type", "body")
	}
	return ""
}

// IsPlaceholder reports whether the shape is bound to a layout placeholder.
func (n *Node) IsPlaceholder() bool {
	return n.PlaceholderType() != ""
}

// TextBody returns the shape's p:txBody, if any.
func (n *Node) TextBody() *etree.Element {
	if n.Kind != KindPlain && n.Kind != KindConnector {
		return nil
	}
	return Child(n.Element, "txBody")
}

// Blip returns the a:blip of a picture.
func (n *Node) Blip() *etree.Element {
	if n.Kind != KindPicture {
		return nil
	}
	fill := Child(n.Element, "blipFill")
	if fill == nil {
		return nil
	}
	return Child(fill, "blip")
}

// EmbedID returns the relationship id of a picture's image.
func (n *Node) EmbedID() string {
	blip := n.Blip()
	if blip == nil {
		return ""
	}
	return AttrValue(blip, "embed")
}

// SetEmbedID repoints the picture's image reference.
func (n *Node) SetEmbedID(id string) bool {
	return SetAttrValue(n.Blip(), "embed", id)
}

// Attached reports whether the node is still part of its document.
func (n *Node) Attached() bool {
	return Attached(n.Element)
}

// Excise removes the node from its parent. It returns false when the node
// has already been removed, directly or with an enclosing group.
func (n *Node) Excise() bool {
	if !Attached(n.Element) {
		return false
	}
	parent := n.Element.Parent()
	return parent.RemoveChild(n.Element) != nil
}

// Tree returns the p:spTree of a slide, layout or master document.
func Tree(doc *etree.Document) *etree.Element {
	root := doc.Root()
	if root == nil {
		return nil
	}
	cSld := Child(root, "cSld")
	if cSld == nil {
		return nil
	}
	return Child(cSld, "spTree")
}

// Child returns the first child element with the given local name.
func Child(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Descendants returns every element below el with the given local name, in
// document order.
func Descendants(el *etree.Element, tag string) []*etree.Element {
	if el == nil {
		return nil
	}
	var out []*etree.Element
	stack := []*etree.Element{el}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		children := cur.ChildElements()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
		if cur != el && cur.Tag == tag {
			out = append(out, cur)
		}
	}
	return out
}

// AttrValue returns the value of the attribute with the given local name,
// whatever prefix it is bound to.
func AttrValue(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// SetAttrValue overwrites an existing attribute matched by local name.
func SetAttrValue(el *etree.Element, key, value string) bool {
	if el == nil {
		return false
	}
	for i := range el.Attr {
		if el.Attr[i].Key == key {
			el.Attr[i].Value = value
			return true
		}
	}
	return false
}

// Attached reports whether el is still reachable from its document.
func Attached(el *etree.Element) bool {
	if el == nil {
		return false
	}
	top := el
	for top.Parent() != nil {
		top = top.Parent()
	}
	// The document node is the only element without a tag.
	return top != el && top.Tag == ""
}
