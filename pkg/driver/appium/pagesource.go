package appium

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// Node is one element of a UiAutomator2 page source.
type Node struct {
	Class       string
	Text        string
	ResourceID  string
	ContentDesc string
	HintText    string
	Package     string
	Bounds      core.Bounds
	Enabled     bool
	Displayed   bool
	Clickable   bool
	Scrollable  bool
	Focused     bool
	Depth       int
	Children    []*Node
	Parent      *Node
}

// Hierarchy is a parsed page source. Nodes is the depth-first flattening
// of the tree, so it preserves on-screen document order.
type Hierarchy struct {
	Roots []*Node
	Nodes []*Node
}

// ParsePageSource parses UiAutomator2 page source XML.
func ParsePageSource(xmlData string) (*Hierarchy, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	h := &Hierarchy{}
	foundHierarchy := false
	var parseElement func(depth int) (*Node, error)

	parseElement = func(depth int) (*Node, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				if t.Name.Local == "hierarchy" {
					foundHierarchy = true
					continue
				}

				node := &Node{Class: t.Name.Local, Depth: depth, Displayed: true}
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "text":
						node.Text = attr.Value
					case "resource-id":
						node.ResourceID = attr.Value
					case "content-desc":
						node.ContentDesc = attr.Value
					case "hint":
						node.HintText = attr.Value
					case "class":
						node.Class = attr.Value
					case "package":
						node.Package = attr.Value
					case "bounds":
						node.Bounds = parseBounds(attr.Value)
					case "enabled":
						node.Enabled = attr.Value == "true"
					case "focused":
						node.Focused = attr.Value == "true"
					case "displayed":
						node.Displayed = attr.Value != "false"
					case "clickable":
						node.Clickable = attr.Value == "true"
					case "scrollable":
						node.Scrollable = attr.Value == "true"
					}
				}

				for {
					child, err := parseElement(depth + 1)
					if err != nil || child == nil {
						break
					}
					child.Parent = node
					node.Children = append(node.Children, child)
				}

				return node, nil

			case xml.EndElement:
				return nil, nil
			}
		}
	}

	var parseErr error
	for {
		node, err := parseElement(0)
		if err != nil {
			if err != io.EOF {
				parseErr = err
			}
			break
		}
		if node != nil {
			h.Roots = append(h.Roots, node)
			h.Nodes = append(h.Nodes, node.flatten()...)
		}
	}

	if parseErr != nil && len(h.Nodes) == 0 {
		return nil, parseErr
	}
	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}

	return h, nil
}

// flatten returns the node and all descendants in document order.
func (n *Node) flatten() []*Node {
	result := []*Node{n}
	for _, child := range n.Children {
		result = append(result, child.flatten()...)
	}
	return result
}

// Descendants returns all nodes below n in document order.
func (n *Node) Descendants() []*Node {
	return n.flatten()[1:]
}

// DescendantsOfClass returns descendants whose class matches.
func (n *Node) DescendantsOfClass(class string) []*Node {
	var out []*Node
	for _, d := range n.Descendants() {
		if d.Class == class {
			out = append(out, d)
		}
	}
	return out
}

// Find returns nodes matching pred in document order.
func (h *Hierarchy) Find(pred func(*Node) bool) []*Node {
	var out []*Node
	for _, n := range h.Nodes {
		if pred(n) {
			out = append(out, n)
		}
	}
	return out
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]".
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}
