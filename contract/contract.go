package contract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/celfmt-ui/errors"
)

// Entry point names the guest registers.
const (
	EntryMetadata = "metadata"
	EntryFormat   = "format"
)

// Realloc is the export the host uses to allocate argument memory.
const Realloc = "cabi_realloc"

// Canonical ABI flattening limits.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// WIT declares the formatter entry points.
const WIT = `
	metadata: func() -> string
	format: func(src: string) -> string
`

// ReallocType is the core type of cabi_realloc(old_ptr, old_size, align, new_size) -> ptr.
var ReallocType = CoreType{
	Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
	Results: []api.ValueType{api.ValueTypeI32},
}

// Signature is a parsed WIT function signature.
type Signature struct {
	Name    string
	Params  []wit.Type
	Results []wit.Type
}

// CoreType is a flattened core WebAssembly function type.
type CoreType struct {
	Params  []api.ValueType
	Results []api.ValueType
}

func (c CoreType) String() string {
	return "(" + valueTypeList(c.Params) + ") -> " + resultList(c.Results)
}

// Equal reports whether both types have the same params and results.
func (c CoreType) Equal(other CoreType) bool {
	return valueTypesEqual(c.Params, other.Params) && valueTypesEqual(c.Results, other.Results)
}

var (
	defaultOnce sync.Once
	defaultSigs map[string]*Signature
	defaultErr  error
)

// Default returns the parsed signatures of WIT.
func Default() (map[string]*Signature, error) {
	defaultOnce.Do(func() {
		defaultSigs, defaultErr = Parse(WIT)
	})
	return defaultSigs, defaultErr
}

var funcPattern = regexp.MustCompile(`(?:export\s+)?([a-zA-Z_][a-zA-Z0-9_-]*)\s*:\s*func\s*\(([^)]*)\)(?:\s*->\s*([^;\n]+))?`)

// Parse extracts function signatures from WIT text.
// Pattern: [export] name: func(params) -> result;
func Parse(witText string) (map[string]*Signature, error) {
	sigs := make(map[string]*Signature)

	for _, match := range funcPattern.FindAllStringSubmatch(witText, -1) {
		sig := &Signature{Name: match[1]}

		if paramsStr := strings.TrimSpace(match[2]); paramsStr != "" {
			for _, p := range strings.Split(paramsStr, ",") {
				typStr := p
				if idx := strings.LastIndex(p, ":"); idx != -1 {
					typStr = p[idx+1:]
				}
				t, err := wit.ParseType(strings.TrimSpace(typStr))
				if err != nil {
					return nil, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "parse param type "+typStr)
				}
				sig.Params = append(sig.Params, t)
			}
		}

		if resultStr := strings.TrimSpace(match[3]); resultStr != "" && resultStr != "()" {
			t, err := wit.ParseType(resultStr)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseBind, errors.KindInvalidData, err, "parse result type "+resultStr)
			}
			sig.Results = []wit.Type{t}
		}

		sigs[sig.Name] = sig
	}

	if len(sigs) == 0 {
		return nil, errors.InvalidInput(errors.PhaseBind, "no functions found in WIT text")
	}

	return sigs, nil
}

// Core returns the core type of an exported function with this signature.
func (s *Signature) Core() (CoreType, error) {
	var ct CoreType

	for _, p := range s.Params {
		flat, err := flatten(p)
		if err != nil {
			return CoreType{}, err
		}
		ct.Params = append(ct.Params, flat...)
	}
	if len(ct.Params) > MaxFlatParams {
		ct.Params = []api.ValueType{api.ValueTypeI32}
	}

	for _, r := range s.Results {
		flat, err := flatten(r)
		if err != nil {
			return CoreType{}, err
		}
		ct.Results = append(ct.Results, flat...)
	}
	if len(ct.Results) > MaxFlatResults {
		ct.Results = []api.ValueType{api.ValueTypeI32}
	}

	return ct, nil
}

// ReturnsPointer reports whether results are returned through a pointer to
// guest memory rather than as flat values.
func (s *Signature) ReturnsPointer() bool {
	n := 0
	for _, r := range s.Results {
		flat, err := flatten(r)
		if err != nil {
			return false
		}
		n += len(flat)
	}
	return n > MaxFlatResults
}

func flatten(t wit.Type) ([]api.ValueType, error) {
	switch v := t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}, nil
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}, nil
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}, nil
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}, nil
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case *wit.TypeDef:
		if _, ok := v.Kind.(*wit.List); ok {
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
		}
	}
	return nil, errors.Unsupported(errors.PhaseBind, fmt.Sprintf("flatten WIT type %T", t))
}

// Validate checks exported function definitions against the signatures.
// Every signature and cabi_realloc must be exported with a matching core type.
func Validate(sigs map[string]*Signature, defs map[string]api.FunctionDefinition) error {
	names := make([]string, 0, len(sigs))
	for name := range sigs {
		names = append(names, name)
	}
	sort.Strings(names)

	var missing []errors.MissingEntry
	check := func(name string, want CoreType) error {
		def, ok := defs[name]
		if !ok {
			missing = append(missing, errors.MissingEntry{Name: name, Reason: "not exported"})
			return nil
		}
		got := CoreType{Params: def.ParamTypes(), Results: def.ResultTypes()}
		if !want.Equal(got) {
			return errors.SignatureMismatch(name, want.String(), got.String())
		}
		return nil
	}

	for _, name := range names {
		want, err := sigs[name].Core()
		if err != nil {
			return err
		}
		if err := check(name, want); err != nil {
			return err
		}
	}
	if err := check(Realloc, ReallocType); err != nil {
		return err
	}

	if len(missing) > 0 {
		return errors.Wrap(errors.PhaseBind, errors.KindMissingEntry, &errors.MissingEntriesError{Entries: missing}, "validate exports")
	}
	return nil
}

func valueTypeList(types []api.ValueType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = api.ValueTypeName(t)
	}
	return strings.Join(names, ", ")
}

func resultList(types []api.ValueType) string {
	switch len(types) {
	case 0:
		return "()"
	case 1:
		return api.ValueTypeName(types[0])
	default:
		return "(" + valueTypeList(types) + ")"
	}
}

func valueTypesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
