package decl

import "github.com/teranos/bindgen/errors"

// Kind discriminates the declaration variants.
type Kind uint8

const (
	KindFunction Kind = iota + 1
	KindStruct
	KindEnum
	KindConstant
	KindTypedef
)

var kindNames = map[Kind]string{
	KindFunction: "function",
	KindStruct:   "struct",
	KindEnum:     "enum",
	KindConstant: "constant",
	KindTypedef:  "typedef",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind accepts the names produced by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.Newf("unknown declaration kind %q", s)
}

// Kinds lists every kind in emission order.
func Kinds() []Kind {
	return []Kind{KindConstant, KindEnum, KindStruct, KindTypedef, KindFunction}
}
