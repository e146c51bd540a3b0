package h5writer

import (
	"github.com/scigolib/h5writer/internal/core"
	"github.com/scigolib/h5writer/internal/structures"
	"github.com/scigolib/h5writer/internal/utils"
)

// node is the part shared by groups and variables: identity, attributes
// and the object header.
type node struct {
	core.BlockBase

	file   *File
	parent *Group
	name   string

	attrs     []*core.Attribute
	attrBytes uint64

	header   core.ObjectHeaderWriter
	prepared bool
}

// Name returns the local name, "" for the root group.
func (n *node) Name() string {
	return n.name
}

// Path returns the absolute path: "/" for the root, "/a/b" below it.
func (n *node) Path() string {
	if n.parent == nil {
		return "/"
	}
	if n.parent.parent == nil {
		return "/" + n.name
	}
	return n.parent.Path() + "/" + n.name
}

// addAttribute declares a compact attribute on the node.
func (n *node) addAttribute(name string, vtype ValueType, value interface{}, ragged bool) error {
	path := n.Path()
	if err := n.file.checkDefining(path); err != nil {
		return err
	}
	for _, a := range n.attrs {
		if a.Name == name {
			return utils.SchemaError(path, "duplicate attribute %q", name)
		}
	}

	var v core.Value
	if value != nil {
		var err error
		if v, err = toValue(value); err != nil {
			return utils.WrapError(path+" attribute "+name, err)
		}
	}

	dt, err := dataType(vtype, 0, nil)
	if err != nil {
		return err
	}
	attr, err := core.NewAttribute(name, dt, v, ragged)
	if err != nil {
		return utils.WrapError(path, err)
	}

	// A measuring layout checks the value against the type now rather
	// than at EndDefine.
	if err := attr.Encode(n.file.probeContext()); err != nil {
		return utils.WrapError(path, err)
	}

	size, err := attr.PayloadSize()
	if err != nil {
		return utils.SchemaError(path, "attribute %q: %v", name, err)
	}
	if n.attrBytes+size > utils.MaxAttributeBytes {
		return utils.SchemaError(path, "attribute %q: attributes exceed %d bytes", name, utils.MaxAttributeBytes)
	}
	n.attrBytes += size

	n.attrs = append(n.attrs, attr)
	return nil
}

// attributeMessages returns the attribute messages in declaration order.
func (n *node) attributeMessages() []core.Message {
	msgs := make([]core.Message, len(n.attrs))
	for i, a := range n.attrs {
		msgs[i] = a
	}
	return msgs
}

// Group is an HDF5 group: an ordered set of sub-groups and variables plus
// attributes.
type Group struct {
	node

	groups    []*Group
	variables []*Variable

	// file version 1 only
	heap  *structures.LocalHeap
	btree *structures.GroupBTree
}

func newGroup(f *File, parent *Group, name string) *Group {
	g := &Group{node: node{file: f, parent: parent, name: name}}
	g.SetAddress(core.UndefinedAddress)
	if f.layout.Version == 1 {
		g.heap = structures.NewLocalHeap()
		g.btree = structures.NewGroupBTree(g.heap, nil)
	}
	return g
}

func (g *Group) block() core.Block {
	return g
}

// Groups returns the sub-groups in declaration order.
func (g *Group) Groups() []*Group {
	return g.groups
}

// Variables returns the variables in declaration order.
func (g *Group) Variables() []*Variable {
	return g.variables
}

// AddGroup declares a sub-group.
//
// Example:
//
//	f, _ := h5writer.Create("data.h5", h5writer.CreateTruncate)
//	obs, _ := f.Root().AddGroup("observations")
//	obs.AddGroup("surface")
func (g *Group) AddGroup(name string) (*Group, error) {
	if err := g.checkChild(name); err != nil {
		return nil, err
	}
	sub := newGroup(g.file, g, name)
	g.groups = append(g.groups, sub)
	return sub, nil
}

// AddAttribute attaches an attribute to the group.
//
// A FixedString attribute takes the width of its longest string. A scalar
// VlenString attribute is stored as a FixedString. A ragged attribute is a
// list of rows of differing lengths ([][]int16, ...) and is stored as a
// Vlen of vtype. Compound attributes use the dimension-list members.
func (g *Group) AddAttribute(name string, vtype ValueType, value interface{}, ragged bool) error {
	return g.addAttribute(name, vtype, value, ragged)
}

func (g *Group) checkChild(name string) error {
	path := g.Path()
	if err := g.file.checkDefining(path); err != nil {
		return err
	}
	if err := core.CheckName(name); err != nil {
		return utils.WrapError(path, err)
	}
	if g.child(name) != nil {
		return utils.SchemaError(path, "duplicate name %q", name)
	}
	return nil
}

func (g *Group) child(name string) core.Block {
	for _, sub := range g.groups {
		if sub.name == name {
			return sub
		}
	}
	for _, v := range g.variables {
		if v.name == name {
			return v
		}
	}
	return nil
}

// numChildren returns the number of links of the group.
func (g *Group) numChildren() int {
	return len(g.groups) + len(g.variables)
}

// prepare builds the header messages. It runs once, on pass 1.
//
// Version 2: modification time, attribute info, attributes, group info,
// link info, then one link per sub-group and per variable.
//
// Version 1: modification time, symbol table, attributes. The links go to
// the symbol-table node, named in the group's local heap.
func (g *Group) prepare() {
	state := g.file.layout
	msgs := []core.Message{core.ModTime{}}

	if state.Version == 1 {
		msgs = append(msgs, &core.SymbolTable{BTree: g.btree, Heap: g.heap})
		msgs = append(msgs, g.attributeMessages()...)

		entries := make([]structures.SymbolEntry, 0, g.numChildren())
		for _, sub := range g.groups {
			entries = append(entries, structures.SymbolEntry{Name: sub.name, NameOffset: g.heap.Put([]byte(sub.name)), Target: sub})
		}
		for _, v := range g.variables {
			entries = append(entries, structures.SymbolEntry{Name: v.name, NameOffset: g.heap.Put([]byte(v.name)), Target: v})
		}
		g.btree.Node = structures.NewSymbolTableNode(entries)
	} else {
		msgs = append(msgs, &core.AttrInfo{NumAttrs: len(g.attrs)})
		msgs = append(msgs, g.attributeMessages()...)

		links := make([]core.Message, 0, g.numChildren())
		var maxOrder int64
		link := func(name string, target core.Block) {
			order := state.NextCreationOrder()
			maxOrder = order + 1
			links = append(links, &core.Link{Name: name, CreationOrder: order, Target: target})
		}
		for _, sub := range g.groups {
			link(sub.name, sub)
		}
		for _, v := range g.variables {
			link(v.name, v)
		}

		msgs = append(msgs, core.GroupInfo{}, &core.LinkInfo{MaxCreationIndex: maxOrder})
		msgs = append(msgs, links...)
	}

	g.header.Messages = msgs
	g.prepared = true
}

// Format implements core.Block: the group's object header.
func (g *Group) Format(ctx *core.Context) error {
	if !g.prepared {
		if ctx.Mode.Pass() != 1 {
			return utils.EncodingError(g.Path(), "group formatted in %s before pass 1", ctx.Mode)
		}
		g.prepare()
	}
	if err := g.header.Format(ctx); err != nil {
		return utils.WrapError(g.Path(), err)
	}
	return nil
}
