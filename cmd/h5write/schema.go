package main

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/scigolib/h5writer"
	"github.com/scigolib/h5writer/internal/utils"
)

// Schema is the TOML description of a file: its groups, variables and
// attributes, and how the variable data is generated.
//
//	groups = ["/obs", "/obs/surface"]
//
//	[[variables]]
//	path = "/obs/temperature"
//	type = "float64"
//	shape = [10, 5]
//	chunks = [5, 5]
//	compression = 6
//	fill = -999999.0
//	generator = { kind = "index" }
//
//	[[attributes]]
//	target = "/obs/temperature"
//	name = "units"
//	type = "vlen-string"
//	value = "celsius"
type Schema struct {
	Groups     []string          `toml:"groups"`
	Variables  []VariableSchema  `toml:"variables"`
	Attributes []AttributeSchema `toml:"attributes"`
}

// VariableSchema declares one variable.
type VariableSchema struct {
	Path        string      `toml:"path"`
	Type        string      `toml:"type"`
	Shape       []int64     `toml:"shape"`
	Scalar      bool        `toml:"scalar"`
	Chunks      []int64     `toml:"chunks"`
	Compression int         `toml:"compression"`
	StrLen      int         `toml:"string_length"`
	Fill        interface{} `toml:"fill"`
	Generator   Generator   `toml:"generator"`
}

// AttributeSchema declares one attribute. Target is the path of a group or
// variable, "/" for the root.
type AttributeSchema struct {
	Target string      `toml:"target"`
	Name   string      `toml:"name"`
	Type   string      `toml:"type"`
	Value  interface{} `toml:"value"`
	Ragged bool        `toml:"ragged"`
}

// Generator produces variable data.
//
//   - "index" (default): the element at (i, j, k) is i*1000^2 + j*1000 + k
//   - "const": every element is Value
//   - "strings": Strings, cycled in row-major order
type Generator struct {
	Kind    string      `toml:"kind"`
	Value   interface{} `toml:"value"`
	Strings []string    `toml:"strings"`
}

// LoadSchema reads a schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read schema")
	}
	return ParseSchema(data)
}

// ParseSchema decodes a TOML schema.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "parse schema")
	}
	for i, v := range s.Variables {
		if v.Path == "" {
			return nil, errors.Errorf("variable %d: missing path", i)
		}
		switch v.Generator.Kind {
		case "", "index", "const", "strings":
		default:
			return nil, errors.Errorf("variable %s: unknown generator %q", v.Path, v.Generator.Kind)
		}
	}
	return &s, nil
}

// build declares the schema in f and returns the variables to fill, keyed
// by path.
func (s *Schema) build(f *h5writer.File) (map[string]*h5writer.Variable, error) {
	objects := map[string]h5writer.Object{"/": f.Root()}
	groups := map[string]*h5writer.Group{"/": f.Root()}

	for _, path := range s.Groups {
		parent, name, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		pg, ok := groups[parent]
		if !ok {
			return nil, errors.Errorf("group %s: parent %s not declared", path, parent)
		}
		g, err := pg.AddGroup(name)
		if err != nil {
			return nil, err
		}
		groups[path], objects[path] = g, g
	}

	vars := make(map[string]*h5writer.Variable)
	for i := range s.Variables {
		vs := &s.Variables[i]
		v, err := vs.declare(groups)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %s", vs.Path)
		}
		vars[vs.Path], objects[vs.Path] = v, v
	}

	for _, as := range s.Attributes {
		target := as.Target
		if target == "" {
			target = "/"
		}
		obj, ok := objects[target]
		if !ok {
			return nil, errors.Errorf("attribute %s: unknown target %s", as.Name, target)
		}
		if err := as.declare(obj); err != nil {
			return nil, errors.Wrapf(err, "attribute %s of %s", as.Name, target)
		}
	}
	return vars, nil
}

func (vs *VariableSchema) declare(groups map[string]*h5writer.Group) (*h5writer.Variable, error) {
	parent, name, err := splitPath(vs.Path)
	if err != nil {
		return nil, err
	}
	g, ok := groups[parent]
	if !ok {
		return nil, errors.Errorf("group %s not declared", parent)
	}
	vtype, err := h5writer.ParseValueType(vs.Type)
	if err != nil {
		return nil, err
	}

	var shape []uint64
	switch {
	case vs.Scalar:
		shape = []uint64{}
	case vs.Shape != nil:
		if shape, err = dims(vs.Shape); err != nil {
			return nil, err
		}
	}

	var opts []h5writer.VariableOption
	if vs.Chunks != nil {
		chunks, err := dims(vs.Chunks)
		if err != nil {
			return nil, err
		}
		opts = append(opts, h5writer.WithChunks(chunks...))
	}
	if vs.Compression != 0 {
		opts = append(opts, h5writer.WithCompression(vs.Compression))
	}
	if vs.StrLen != 0 {
		opts = append(opts, h5writer.WithStringLength(vs.StrLen))
	}
	if vs.Fill != nil {
		fill, err := convert(vtype, vs.Fill)
		if err != nil {
			return nil, errors.Wrap(err, "fill")
		}
		opts = append(opts, h5writer.WithFill(fill))
	}
	return g.AddVariable(name, vtype, shape, opts...)
}

func (as *AttributeSchema) declare(obj h5writer.Object) error {
	vtype, err := h5writer.ParseValueType(as.Type)
	if err != nil {
		return err
	}
	var value interface{}
	if as.Value != nil {
		if value, err = convertTree(vtype, as.Value); err != nil {
			return err
		}
	}
	switch o := obj.(type) {
	case *h5writer.Group:
		return o.AddAttribute(as.Name, vtype, value, as.Ragged)
	case *h5writer.Variable:
		return o.AddAttribute(as.Name, vtype, value, as.Ragged)
	}
	return errors.Errorf("unsupported target %T", obj)
}

// chunk generates the data of one chunk of v.
func (vs *VariableSchema) chunk(v *h5writer.Variable, tile h5writer.ChunkTile) (interface{}, error) {
	shape := v.Shape()
	idx := make([]uint64, len(shape))
	var build func(d int) (interface{}, error)
	build = func(d int) (interface{}, error) {
		if d == len(shape) {
			return vs.element(v.Type(), shape, idx)
		}
		row := make([]interface{}, tile.Extent[d])
		for k := range row {
			idx[d] = tile.Start[d] + uint64(k)
			e, err := build(d + 1)
			if err != nil {
				return nil, err
			}
			row[k] = e
		}
		return row, nil
	}
	return build(0)
}

func (vs *VariableSchema) element(vtype h5writer.ValueType, shape, idx []uint64) (interface{}, error) {
	gen := vs.Generator
	switch gen.Kind {
	case "const":
		return convert(vtype, gen.Value)
	case "strings":
		if len(gen.Strings) == 0 {
			return nil, errors.New("strings generator without strings")
		}
		var linear uint64
		for d, n := range shape {
			linear = linear*n + idx[d]
		}
		return convert(vtype, gen.Strings[linear%uint64(len(gen.Strings))])
	default:
		var v float64
		for _, i := range idx {
			v = v*1000 + float64(i)
		}
		return convert(vtype, v)
	}
}

// convertTree converts a decoded TOML value, scalar or nested arrays, to
// the Go types the writer expects for vtype.
func convertTree(vtype h5writer.ValueType, v interface{}) (interface{}, error) {
	if list, ok := v.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			c, err := convertTree(vtype, item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return convert(vtype, v)
}

// integerRanges are the bounds of the integer value types.
var integerRanges = map[h5writer.ValueType][2]int64{
	h5writer.Int8:  {math.MinInt8, math.MaxInt8},
	h5writer.Uint8: {0, math.MaxUint8},
	h5writer.Int16: {math.MinInt16, math.MaxInt16},
	h5writer.Int32: {math.MinInt32, math.MaxInt32},
	h5writer.Int64: {math.MinInt64, math.MaxInt64},
}

// convert converts one TOML scalar (int64, float64 or string) to vtype.
// Numbers are never narrowed: a value that does not fit vtype, or a
// fraction for an integer type, is an error.
func convert(vtype h5writer.ValueType, v interface{}) (interface{}, error) {
	switch vtype {
	case h5writer.FixedString, h5writer.VlenString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	case h5writer.Reference, h5writer.Compound, h5writer.Vlen:
		return nil, errors.Errorf("type %s is not supported in schemas", vtype)
	}

	if bounds, ok := integerRanges[vtype]; ok {
		n, err := toInteger(v)
		if err != nil {
			return nil, utils.SchemaError(vtype.String(), "%v", err)
		}
		if n < bounds[0] || n > bounds[1] {
			return nil, utils.SchemaError(vtype.String(), "%v out of range [%d, %d]", v, bounds[0], bounds[1])
		}
		switch vtype {
		case h5writer.Int8:
			return int8(n), nil
		case h5writer.Uint8:
			return uint8(n), nil
		case h5writer.Int16:
			return int16(n), nil
		case h5writer.Int32:
			return int32(n), nil
		default:
			return n, nil
		}
	}

	var f float64
	switch x := v.(type) {
	case int64:
		f = float64(x)
	case float64:
		f = x
	default:
		return nil, utils.SchemaError(vtype.String(), "%v (%T) is not a number", v, v)
	}

	switch vtype {
	case h5writer.Float32:
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, utils.SchemaError(vtype.String(), "%v out of range", v)
		}
		return float32(f), nil
	case h5writer.Float64:
		return f, nil
	}
	return nil, errors.Errorf("unsupported type %s", vtype)
}

// toInteger returns v as an int64 when it is a whole number that fits.
func toInteger(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, errors.Errorf("%v is not a whole number", x)
		}
		// 2^63 is the first float64 past MaxInt64.
		if x < math.MinInt64 || x >= 1<<63 {
			return 0, errors.Errorf("%v out of range", x)
		}
		return int64(x), nil
	}
	return 0, errors.Errorf("%v (%T) is not a number", v, v)
}

func dims(in []int64) ([]uint64, error) {
	out := make([]uint64, len(in))
	for i, d := range in {
		if d < 0 {
			return nil, errors.Errorf("negative extent %d", d)
		}
		out[i] = uint64(d)
	}
	return out, nil
}

// splitPath splits "/a/b" into "/a" and "b".
func splitPath(path string) (parent, name string, err error) {
	if !strings.HasPrefix(path, "/") || path == "/" || strings.HasSuffix(path, "/") {
		return "", "", errors.Errorf("invalid path %q", path)
	}
	i := strings.LastIndex(path, "/")
	parent, name = path[:i], path[i+1:]
	if parent == "" {
		parent = "/"
	}
	return parent, name, nil
}
