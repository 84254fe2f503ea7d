package types

// declarePrelude installs Option and Result. They behave exactly like
// user declarations, so patterns and constructors go through the same
// paths as any other sum type.
func (c *Checker) declarePrelude() {
	option := &TypeDef{Name: "Option", Params: []string{"a"}}
	some := &Ctor{Name: "Some", Owner: option, Tag: 0, Payload: []Type{&TypeParam{Name: "a"}}}
	none := &Ctor{Name: "None", Owner: option, Tag: 1}
	option.Variants = []*Ctor{some, none}
	c.typeDefs["Option"] = option
	c.defineCtor(some, nil, c.global)
	c.defineCtor(none, nil, c.global)

	result := &TypeDef{Name: "Result", Params: []string{"a", "e"}}
	okc := &Ctor{Name: "Ok", Owner: result, Tag: 0, Payload: []Type{&TypeParam{Name: "a"}}}
	errc := &Ctor{Name: "Err", Owner: result, Tag: 1, Payload: []Type{&TypeParam{Name: "e"}}}
	result.Variants = []*Ctor{okc, errc}
	c.typeDefs["Result"] = result
	c.defineCtor(okc, nil, c.global)
	c.defineCtor(errc, nil, c.global)
}

type builtinSig struct {
	name    string
	tparams []string
	params  []Type
	ret     Type
}

func tp(name string) Type { return &TypeParam{Name: name} }

func listOf(t Type) Type { return &Con{Name: "List", Args: []Type{t}} }

func optionOf(t Type) Type { return &Con{Name: "Option", Args: []Type{t}} }

func resultOf(ok, err Type) Type { return &Con{Name: "Result", Args: []Type{ok, err}} }

// declareBuiltins installs the runtime's function surface. Codegen
// lowers calls to these into calls against the C runtime.
func (c *Checker) declareBuiltins() {
	sigs := []builtinSig{
		{name: "print", tparams: []string{"a"}, params: []Type{tp("a")}, ret: Unit},
		{name: "println", tparams: []string{"a"}, params: []Type{tp("a")}, ret: Unit},
		{name: "panic", tparams: []string{"a"}, params: []Type{String}, ret: tp("a")},

		{name: "str_len", params: []Type{String}, ret: Int},
		{name: "str_concat", params: []Type{String, String}, ret: String},
		{name: "str_slice", params: []Type{String, Int, Int}, ret: String},
		{name: "str_contains", params: []Type{String, String}, ret: Bool},
		{name: "str_split", params: []Type{String, String}, ret: listOf(String)},
		{name: "str_to_int", params: []Type{String}, ret: resultOf(Int, String)},
		{name: "int_to_str", params: []Type{Int}, ret: String},
		{name: "float_to_str", params: []Type{Float}, ret: String},
		{name: "int_to_float", params: []Type{Int}, ret: Float},
		{name: "float_to_int", params: []Type{Float}, ret: Int},

		{name: "list_len", tparams: []string{"a"}, params: []Type{listOf(tp("a"))}, ret: Int},
		{name: "list_push", tparams: []string{"a"}, params: []Type{listOf(tp("a")), tp("a")}, ret: listOf(tp("a"))},
		{name: "list_get", tparams: []string{"a"}, params: []Type{listOf(tp("a")), Int}, ret: optionOf(tp("a"))},
		{name: "list_head", tparams: []string{"a"}, params: []Type{listOf(tp("a"))}, ret: optionOf(tp("a"))},
		{name: "list_tail", tparams: []string{"a"}, params: []Type{listOf(tp("a"))}, ret: listOf(tp("a"))},
		{name: "list_concat", tparams: []string{"a"}, params: []Type{listOf(tp("a")), listOf(tp("a"))}, ret: listOf(tp("a"))},
		{name: "list_reverse", tparams: []string{"a"}, params: []Type{listOf(tp("a"))}, ret: listOf(tp("a"))},
		{name: "list_map", tparams: []string{"a", "b"},
			params: []Type{listOf(tp("a")), &Func{Params: []Type{tp("a")}, Return: tp("b")}},
			ret:    listOf(tp("b"))},
		{name: "list_filter", tparams: []string{"a"},
			params: []Type{listOf(tp("a")), &Func{Params: []Type{tp("a")}, Return: Bool}},
			ret:    listOf(tp("a"))},
		{name: "list_fold", tparams: []string{"a", "b"},
			params: []Type{listOf(tp("a")), tp("b"), &Func{Params: []Type{tp("b"), tp("a")}, Return: tp("b")}},
			ret:    tp("b")},
		{name: "range", params: []Type{Int, Int}, ret: listOf(Int)},

		{name: "read_file", params: []Type{String}, ret: resultOf(String, String)},
		{name: "write_file", params: []Type{String, String}, ret: resultOf(Unit, String)},
		{name: "read_line", params: []Type{}, ret: resultOf(String, String)},
	}

	for _, s := range sigs {
		c.global.Define(&Symbol{
			Name:       s.name,
			Kind:       SymFunc,
			Type:       &Func{Params: s.params, Return: s.ret},
			TypeParams: s.tparams,
		})
	}
}

// Builtins lists the runtime function names, for the REPL's :help and
// for codegen to decide whether a call targets the runtime.
func Builtins() []string {
	return []string{
		"print", "println", "panic",
		"str_len", "str_concat", "str_slice", "str_contains", "str_split",
		"str_to_int", "int_to_str", "float_to_str", "int_to_float", "float_to_int",
		"list_len", "list_push", "list_get", "list_head", "list_tail",
		"list_concat", "list_reverse", "list_map", "list_filter", "list_fold",
		"range", "read_file", "write_file", "read_line",
	}
}

// IsBuiltin reports whether name is a runtime-provided function.
func IsBuiltin(name string) bool {
	for _, b := range Builtins() {
		if b == name {
			return true
		}
	}
	return false
}
