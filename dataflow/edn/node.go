package edn

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// NodeType represents the type of EDN node
type NodeType int

const (
	NodeNil NodeType = iota
	NodeBool
	NodeInt
	NodeFloat
	NodeString
	NodeSymbol
	NodeKeyword
	NodeList
	NodeVector
	NodeMap
	NodeSet
)

var nodeTypeNames = [...]string{
	NodeNil:     "nil",
	NodeBool:    "bool",
	NodeInt:     "int",
	NodeFloat:   "float",
	NodeString:  "string",
	NodeSymbol:  "symbol",
	NodeKeyword: "keyword",
	NodeList:    "list",
	NodeVector:  "vector",
	NodeMap:     "map",
	NodeSet:     "set",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "node(" + strconv.Itoa(int(t)) + ")"
}

// Node represents an EDN value. Maps keep their entries as alternating keys
// and values in Nodes.
type Node struct {
	Type  NodeType
	Pos   Pos
	Value string // For atoms; keywords keep their leading colon
	Nodes []Node // For collections
}

// String renders the node back as EDN.
func (n Node) String() string {
	join := func(open, close string) string {
		parts := make([]string, len(n.Nodes))
		for i, c := range n.Nodes {
			parts[i] = c.String()
		}
		return open + strings.Join(parts, " ") + close
	}
	switch n.Type {
	case NodeNil:
		return "nil"
	case NodeString:
		return strconv.Quote(n.Value)
	case NodeList:
		return join("(", ")")
	case NodeVector:
		return join("[", "]")
	case NodeMap:
		return join("{", "}")
	case NodeSet:
		return join("#{", "}")
	default:
		return n.Value
	}
}

func (n Node) expect(t NodeType) error {
	if n.Type != t {
		return errors.Newf("expected %s at %s, got %s %s", t, n.Pos, n.Type, n)
	}
	return nil
}

// AsString returns the content of a string node.
func (n Node) AsString() (string, error) {
	return n.Value, n.expect(NodeString)
}

// AsKeyword returns a keyword's name without the colon.
func (n Node) AsKeyword() (string, error) {
	if err := n.expect(NodeKeyword); err != nil {
		return "", err
	}
	return n.Value[1:], nil
}

// AsSymbol returns the symbol name.
func (n Node) AsSymbol() (string, error) {
	return n.Value, n.expect(NodeSymbol)
}

// AsBool returns the bool value of a bool node.
func (n Node) AsBool() (bool, error) {
	return n.Value == "true", n.expect(NodeBool)
}

// AsInt returns the value of an int node.
func (n Node) AsInt() (int, error) {
	if err := n.expect(NodeInt); err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSuffix(n.Value, "N"))
	return v, errors.Wrapf(err, "int at %s", n.Pos)
}

// AsNumber returns the value of an int or float node.
func (n Node) AsNumber() (float64, error) {
	if n.Type != NodeInt && n.Type != NodeFloat {
		return 0, errors.Newf("expected number at %s, got %s %s", n.Pos, n.Type, n)
	}
	v, err := strconv.ParseFloat(strings.TrimRight(n.Value, "NM"), 64)
	return v, errors.Wrapf(err, "number at %s", n.Pos)
}

// Items returns the elements of a list, vector or set.
func (n Node) Items() ([]Node, error) {
	switch n.Type {
	case NodeList, NodeVector, NodeSet:
		return n.Nodes, nil
	}
	return nil, errors.Newf("expected sequence at %s, got %s %s", n.Pos, n.Type, n)
}

// Get looks up a keyword key (given without colon) in a map node.
func (n Node) Get(key string) (Node, bool) {
	if n.Type != NodeMap {
		return Node{}, false
	}
	for i := 0; i+1 < len(n.Nodes); i += 2 {
		k := n.Nodes[i]
		if k.Type == NodeKeyword && k.Value[1:] == key {
			return n.Nodes[i+1], true
		}
	}
	return Node{}, false
}

// Keys returns the keyword keys of a map node, without colons.
func (n Node) Keys() []string {
	var keys []string
	for i := 0; i+1 < len(n.Nodes); i += 2 {
		if n.Nodes[i].Type == NodeKeyword {
			keys = append(keys, n.Nodes[i].Value[1:])
		}
	}
	return keys
}

// IsNil returns true if the node is nil
func (n Node) IsNil() bool {
	return n.Type == NodeNil
}
