// Package shape models the shape tree of a PresentationML part.
//
// A slide, layout or master part holds its drawing objects under
// p:cSld/p:spTree. Every child of the tree is one of a small set of shape
// elements, and groups (p:grpSp) nest further shapes with their own
// coordinate space:
//
//	<p:spTree>
//	  <p:sp>...</p:sp>                 Plain shape, optional p:txBody
//	  <p:grpSp>                        Group with p:grpSpPr/a:xfrm
//	    <p:pic>...</p:pic>             Picture, a:blip r:embed
//	    <p:cxnSp>...</p:cxnSp>         Connector
//	  </p:grpSp>
//	  <p:graphicFrame>...</p:graphicFrame>  Tables, charts
//	</p:spTree>
//
// # Traversal
//
// Walk flattens the tree with an explicit worklist. Each Node remembers
// the element it wraps, the element that owns it and the chain of
// enclosing groups. The owner is what deletion has to go through: a shape
// nested in a group can only be removed from that group, never from the
// slide root.
//
// # Transforms
//
// A group's a:xfrm carries both its placement in the parent frame
// (a:off, a:ext) and the frame it lays its children out in (a:chOff,
// a:chExt). ComputeAbsolute composes every enclosing group's mapping to
// get the placement of a shape on the slide:
//
//	scale   = ext / chExt
//	offset' = off + (offset - chOff) * scale
//	extent' = extent * scale
//
// Extents that cannot be resolved are reported with the Unresolved
// sentinel rather than guessed.
//
// # Excision
//
// Excise removes the nearest shape that owns a flagged element (usually a
// p:txBody) from its immediate parent. Removing an element twice is a
// no-op.
package shape
