package builder

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/treefind/pkg/tree"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Schema returns the JSON Schema that structured input must satisfy.
func Schema() []byte {
	out := make([]byte, len(schemaJSON))
	copy(out, schemaJSON)

	return out
}

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})

	return schema, schemaErr
}

const (
	keyValue = "value"
	keyLeft  = "left"
	keyRight = "right"
	rootPath = "$"

	// schemaRootField is how gojsonschema names the document root.
	schemaRootField = "(root)"
)

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

type location struct {
	line   int
	column int
	path   string
}

func (loc location) fail(err error) *ParseError {
	return &ParseError{Offset: -1, Line: loc.line, Column: loc.column, Token: loc.path, Err: err}
}

func syntaxError(err error) *ParseError {
	perr := &ParseError{Offset: -1, Err: errors.Wrapf(ErrSyntax, "%v", err)}

	if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
		perr.Line, _ = strconv.Atoi(m[1])
	}

	return perr
}

func buildStructured(text string, maxNodes int, generation string) (*tree.Tree, error) {
	var doc yaml.Node

	err := yaml.Unmarshal([]byte(text), &doc)
	if err != nil {
		return nil, syntaxError(err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree.Empty(generation), nil
	}

	root := resolve(doc.Content[0])
	if isNull(root) {
		return tree.Empty(generation), nil
	}

	err = validateSchema(root)
	if err != nil {
		return nil, err
	}

	shape, locs, err := toShape(root, maxNodes)
	if err != nil {
		return nil, err
	}

	t, err := tree.FromShape(generation, shape)
	if err != nil {
		var verr *tree.ValueError
		if !errors.As(err, &verr) {
			return nil, &ParseError{Offset: -1, Err: err}
		}

		order := preOrder(shape)
		loc := location{path: rootPath}

		if verr.Index < len(order) {
			loc = locs[order[verr.Index]]
		}

		return nil, loc.fail(translate(verr))
	}

	return t, nil
}

// translate maps tree construction errors onto builder causes.
func translate(verr *tree.ValueError) error {
	value := tree.FormatValue(verr.Value)

	switch {
	case errors.Is(verr, tree.ErrDuplicateValue):
		return errors.Wrapf(ErrDuplicateValue, "value %s", value)
	case errors.Is(verr, tree.ErrOrdering):
		return errors.Wrapf(ErrOrdering, "value %s is on the wrong side of an ancestor", value)
	case errors.Is(verr, tree.ErrNonFinite):
		return errors.Wrapf(ErrNonFinite, "value %s", value)
	default:
		return verr
	}
}

func validateSchema(root *yaml.Node) error {
	sch, err := loadSchema()
	if err != nil {
		return &ParseError{Offset: -1, Err: errors.Wrap(err, "load schema")}
	}

	var generic any

	err = root.Decode(&generic)
	if err != nil {
		return syntaxError(err)
	}

	result, err := sch.Validate(gojsonschema.NewGoLoader(generic))
	if err != nil {
		return &ParseError{Offset: -1, Token: rootPath, Err: errors.Wrapf(ErrSchema, "%v", err)}
	}

	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	field := first.Field()

	loc := locate(root, field)

	return loc.fail(errors.Wrapf(ErrSchema, "%s", first.Description()))
}

// locate finds the position of a gojsonschema field such as "left.value" or "(root)".
func locate(root *yaml.Node, field string) location {
	loc := location{line: root.Line, column: root.Column, path: rootPath}
	if field == "" || field == schemaRootField {
		return loc
	}

	cur := root

	for part := range strings.SplitSeq(field, ".") {
		next := mappingValue(cur, part)
		if next == nil {
			break
		}

		cur = next
		loc = location{line: cur.Line, column: cur.Column, path: loc.path + "." + part}
	}

	return loc
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}

	return n
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}

	for idx := 0; idx+1 < len(n.Content); idx += 2 {
		if n.Content[idx].Value == key {
			return resolve(n.Content[idx+1])
		}
	}

	return nil
}

// toShape converts a schema-valid document into a Shape, recording where each node came from.
func toShape(root *yaml.Node, maxNodes int) (*tree.Shape, map[*tree.Shape]location, error) {
	type frame struct {
		node *yaml.Node
		slot **tree.Shape
		path string
	}

	var out *tree.Shape

	locs := make(map[*tree.Shape]location)
	seen := make(map[*yaml.Node]bool)
	stack := []frame{{node: root, slot: &out, path: rootPath}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		loc := location{line: top.node.Line, column: top.node.Column, path: top.path}

		if maxNodes > 0 && len(locs) >= maxNodes {
			return nil, nil, loc.fail(errors.Wrapf(ErrTooManyNodes, "limit %d", maxNodes))
		}

		// An alias reused as a child repeats every value below it.
		if seen[top.node] {
			return nil, nil, loc.fail(errors.Wrap(ErrDuplicateValue, "aliased subtree"))
		}

		seen[top.node] = true
		shape := &tree.Shape{}

		valueNode := mappingValue(top.node, keyValue)
		if valueNode == nil {
			return nil, nil, loc.fail(errors.Wrap(ErrSchema, "value is required"))
		}

		err := valueNode.Decode(&shape.Value)
		if err != nil {
			valueLoc := location{line: valueNode.Line, column: valueNode.Column, path: top.path + "." + keyValue}

			return nil, nil, valueLoc.fail(errors.Wrapf(ErrInvalidNumber, "%v", err))
		}

		*top.slot = shape
		locs[shape] = loc

		if child := mappingValue(top.node, keyRight); !isNull(child) {
			stack = append(stack, frame{node: child, slot: &shape.Right, path: top.path + "." + keyRight})
		}

		if child := mappingValue(top.node, keyLeft); !isNull(child) {
			stack = append(stack, frame{node: child, slot: &shape.Left, path: top.path + "." + keyLeft})
		}
	}

	return out, locs, nil
}

// preOrder lists shapes in the order tree.FromShape numbers them.
func preOrder(root *tree.Shape) []*tree.Shape {
	var out []*tree.Shape

	stack := []*tree.Shape{root}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top == nil {
			continue
		}

		out = append(out, top)
		stack = append(stack, top.Right, top.Left)
	}

	return out
}
