package parser

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DeclKind classifies a top-level declaration.
type DeclKind string

const (
	DeclFunction    DeclKind = "function"
	DeclMethod      DeclKind = "method"
	DeclInitializer DeclKind = "initializer"
	DeclType        DeclKind = "type"
)

// Smell names attached to declarations.
const (
	SmellLongFunction  = "long-function"
	SmellGodFunction   = "god-function"
	SmellDeepNesting   = "deep-nesting"
	SmellLongParamList = "long-parameter-list"
)

// Thresholds for smell detection.
const (
	longFunctionLines = 60
	godFunctionLines  = 120
	godComplexity     = 15
	maxNestingDepth   = 4
	maxParams         = 5
)

// Declaration is one top-level declaration in a file.
type Declaration struct {
	Kind      DeclKind
	Name      string
	Receiver  string // bare receiver type name for methods
	StartLine int    // 1-based, inclusive
	EndLine   int    // 1-based, inclusive
	Exported  bool
	Signature string

	// IsInterface is true for interface type declarations.
	IsInterface bool

	// Calls holds call targets as written in the body ("foo", "pkg.Bar",
	// "recv.method"), deduplicated, sorted.
	Calls []string

	// Embeds holds embedded type names: struct embedded fields, or
	// embedded interfaces for interface declarations.
	Embeds []string

	// Interfaces holds interface names this type is asserted to satisfy
	// (populated for type declarations from var _ I = ... assertions).
	Interfaces []string

	Complexity int
	Smells     []string
	HasTODO    bool
}

// FileSyntax is the declaration-level model of one Go source file.
type FileSyntax struct {
	Path    string
	Package string
	Imports []string
	Decls   []Declaration

	// Conformances maps type name to the interface names it is asserted
	// to satisfy in this file (var _ I = (*T)(nil) and friends).
	Conformances map[string][]string
}

// buildSyntax walks the converted tree and produces the syntax model.
func buildSyntax(path string, root *Node, src []byte) *FileSyntax {
	fs := &FileSyntax{
		Path:         path,
		Conformances: make(map[string][]string),
	}

	for _, n := range root.Children {
		switch n.Type {
		case "package_clause":
			if id := n.FindChildByType("package_identifier"); id != nil {
				fs.Package = id.Content(src)
			}
		case "import_declaration":
			fs.Imports = append(fs.Imports, extractImports(n, src)...)
		case "function_declaration":
			fs.Decls = append(fs.Decls, extractFunction(n, src))
		case "method_declaration":
			fs.Decls = append(fs.Decls, extractMethod(n, src))
		case "type_declaration":
			fs.Decls = append(fs.Decls, extractTypes(n, src)...)
		case "var_declaration":
			collectConformances(n, src, fs.Conformances)
		}
	}

	// Attach conformances to type declarations defined in the same file.
	for i := range fs.Decls {
		d := &fs.Decls[i]
		if d.Kind != DeclType {
			continue
		}
		if ifaces, ok := fs.Conformances[d.Name]; ok {
			d.Interfaces = append(d.Interfaces, ifaces...)
			sort.Strings(d.Interfaces)
		}
	}

	return fs
}

func extractImports(n *Node, src []byte) []string {
	var out []string
	for _, spec := range n.FindAllByType("import_spec") {
		lit := spec.FindChildByType("interpreted_string_literal")
		if lit == nil {
			continue
		}
		out = append(out, strings.Trim(lit.Content(src), `"`))
	}
	return out
}

func extractFunction(n *Node, src []byte) Declaration {
	name := ""
	if id := n.FindChildByType("identifier"); id != nil {
		name = id.Content(src)
	}

	d := Declaration{
		Kind:      DeclFunction,
		Name:      name,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		Exported:  isExported(name),
		Signature: signature(n, src),
	}
	if name == "init" {
		d.Kind = DeclInitializer
	}

	finishFuncDecl(&d, n, src, firstParamList(n))
	return d
}

func extractMethod(n *Node, src []byte) Declaration {
	name := ""
	if id := n.FindChildByType("field_identifier"); id != nil {
		name = id.Content(src)
	}

	d := Declaration{
		Kind:      DeclMethod,
		Name:      name,
		StartLine: int(n.StartPoint.Row) + 1,
		EndLine:   int(n.EndPoint.Row) + 1,
		Exported:  isExported(name),
		Signature: signature(n, src),
	}

	lists := n.FindChildrenByType("parameter_list")
	if len(lists) > 0 {
		d.Receiver = receiverTypeName(lists[0], src)
	}
	var params *Node
	if len(lists) > 1 {
		params = lists[1]
	}

	finishFuncDecl(&d, n, src, params)
	return d
}

// finishFuncDecl fills the body-derived fields shared by functions,
// methods, and initializers.
func finishFuncDecl(d *Declaration, n *Node, src []byte, params *Node) {
	body := n.FindChildByType("block")

	d.Calls = extractCalls(body, src)
	d.Complexity = complexity(body)
	d.HasTODO = containsTODO(n.Content(src))

	lines := d.EndLine - d.StartLine + 1
	if lines > longFunctionLines {
		d.Smells = append(d.Smells, SmellLongFunction)
	}
	if lines > godFunctionLines || d.Complexity > godComplexity {
		d.Smells = append(d.Smells, SmellGodFunction)
	}
	if nestingDepth(body, 0) > maxNestingDepth {
		d.Smells = append(d.Smells, SmellDeepNesting)
	}
	if paramCount(params) > maxParams {
		d.Smells = append(d.Smells, SmellLongParamList)
	}
}

func extractTypes(n *Node, src []byte) []Declaration {
	var out []Declaration
	for _, spec := range n.FindChildrenByType("type_spec") {
		id := spec.FindChildByType("type_identifier")
		if id == nil {
			continue
		}
		name := id.Content(src)

		d := Declaration{
			Kind:      DeclType,
			Name:      name,
			StartLine: int(spec.StartPoint.Row) + 1,
			EndLine:   int(spec.EndPoint.Row) + 1,
			Exported:  isExported(name),
			Signature: signature(spec, src),
			HasTODO:   containsTODO(spec.Content(src)),
		}

		if iface := spec.FindChildByType("interface_type"); iface != nil {
			d.IsInterface = true
			d.Embeds = embeddedInterfaces(iface, src)
		} else if st := spec.FindChildByType("struct_type"); st != nil {
			d.Embeds = embeddedFields(st, src)
		}

		out = append(out, d)
	}

	for _, alias := range n.FindChildrenByType("type_alias") {
		id := alias.FindChildByType("type_identifier")
		if id == nil {
			continue
		}
		name := id.Content(src)
		out = append(out, Declaration{
			Kind:      DeclType,
			Name:      name,
			StartLine: int(alias.StartPoint.Row) + 1,
			EndLine:   int(alias.EndPoint.Row) + 1,
			Exported:  isExported(name),
			Signature: signature(alias, src),
		})
	}
	return out
}

// embeddedInterfaces returns interfaces embedded in an interface decl.
func embeddedInterfaces(iface *Node, src []byte) []string {
	var out []string
	iface.Walk(func(n *Node) bool {
		if n.Type == "method_spec" || n.Type == "method_elem" {
			return false
		}
		if n.Type == "type_identifier" || n.Type == "qualified_type" {
			out = append(out, n.Content(src))
			return false
		}
		return true
	})
	sort.Strings(out)
	return out
}

// embeddedFields returns embedded (anonymous) field type names of a struct.
func embeddedFields(st *Node, src []byte) []string {
	var out []string
	for _, field := range st.FindAllByType("field_declaration") {
		// Named fields carry a field_identifier; embedded fields do not.
		if field.FindChildByType("field_identifier") != nil {
			continue
		}
		name := ""
		field.Walk(func(n *Node) bool {
			if name != "" {
				return false
			}
			if n.Type == "type_identifier" || n.Type == "qualified_type" {
				name = n.Content(src)
				return false
			}
			return true
		})
		if name != "" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// collectConformances picks up var _ Iface = ... assertions.
func collectConformances(n *Node, src []byte, into map[string][]string) {
	for _, spec := range n.FindAllByType("var_spec") {
		id := spec.FindChildByType("identifier")
		if id == nil || id.Content(src) != "_" {
			continue
		}

		iface := ""
		if t := spec.FindChildByType("type_identifier"); t != nil {
			iface = t.Content(src)
		} else if t := spec.FindChildByType("qualified_type"); t != nil {
			iface = t.Content(src)
		}
		if iface == "" {
			continue
		}

		values := spec.FindChildByType("expression_list")
		if values == nil || len(values.Children) == 0 {
			continue
		}
		typeName := assertedTypeName(values.Children[0].Content(src))
		if typeName == "" {
			continue
		}

		into[typeName] = appendUnique(into[typeName], iface)
	}
}

// assertedTypeName extracts the concrete type name from assertion values
// like (*Foo)(nil), &Foo{}, Foo{}, or new(Foo).
func assertedTypeName(expr string) string {
	expr = strings.TrimSpace(expr)

	switch {
	case strings.HasPrefix(expr, "(*"):
		if i := strings.Index(expr, ")"); i > 2 {
			expr = expr[2:i]
		}
	case strings.HasPrefix(expr, "new(") && strings.HasSuffix(expr, ")"):
		expr = expr[4 : len(expr)-1]
	default:
		expr = strings.TrimPrefix(expr, "&")
		if i := strings.Index(expr, "{"); i >= 0 {
			expr = expr[:i]
		}
	}

	expr = strings.TrimSpace(expr)
	// Qualified names refer to types in other packages; keep the last
	// segment so conformance keys stay bare type names.
	if i := strings.LastIndex(expr, "."); i >= 0 {
		expr = expr[i+1:]
	}
	if expr == "" || !isIdentifier(expr) {
		return ""
	}
	return expr
}

// extractCalls collects call targets inside a body, deduplicated and sorted.
func extractCalls(body *Node, src []byte) []string {
	if body == nil {
		return nil
	}

	seen := make(map[string]struct{})
	for _, call := range body.FindAllByType("call_expression") {
		if len(call.Children) == 0 {
			continue
		}
		fn := call.Children[0]
		switch fn.Type {
		case "identifier", "selector_expression":
			seen[fn.Content(src)] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// complexity is 1 plus the count of branch points in the body.
func complexity(body *Node) int {
	if body == nil {
		return 1
	}
	n := 1
	body.Walk(func(node *Node) bool {
		switch node.Type {
		case "if_statement", "for_statement",
			"expression_case", "type_case", "communication_case", "default_case":
			n++
		}
		return true
	})
	return n
}

// nestingDepth returns the maximum block nesting depth below n.
func nestingDepth(n *Node, depth int) int {
	if n == nil {
		return depth
	}
	max := depth
	for _, child := range n.Children {
		d := depth
		if child.Type == "block" {
			d++
		}
		if m := nestingDepth(child, d); m > max {
			max = m
		}
	}
	return max
}

func paramCount(params *Node) int {
	if params == nil {
		return 0
	}
	n := 0
	for _, decl := range params.FindChildrenByType("parameter_declaration") {
		ids := len(decl.FindChildrenByType("identifier"))
		if ids == 0 {
			ids = 1 // unnamed parameter
		}
		n += ids
	}
	n += len(params.FindChildrenByType("variadic_parameter_declaration"))
	return n
}

// signature returns the declaration header: everything up to the body.
func signature(n *Node, src []byte) string {
	end := n.EndByte
	if body := n.FindChildByType("block"); body != nil {
		end = body.StartByte
	} else if line := strings.IndexByte(n.Content(src), '\n'); line >= 0 {
		end = n.StartByte + uint32(line)
	}
	if end > uint32(len(src)) || n.StartByte >= end {
		return ""
	}
	return strings.TrimSpace(string(src[n.StartByte:end]))
}

func firstParamList(n *Node) *Node {
	return n.FindChildByType("parameter_list")
}

// receiverTypeName extracts the bare type name from a method receiver.
func receiverTypeName(recv *Node, src []byte) string {
	name := ""
	recv.Walk(func(n *Node) bool {
		if name != "" {
			return false
		}
		if n.Type == "type_identifier" {
			name = n.Content(src)
			return false
		}
		return true
	})
	return name
}

func isExported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if unicode.IsLetter(r) || r == '_' || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return s != ""
}

func containsTODO(s string) bool {
	return strings.Contains(s, "TODO") || strings.Contains(s, "FIXME")
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
