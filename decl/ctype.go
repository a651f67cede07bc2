package decl

import "strings"

// Helpers over native type strings as the parser renders them:
// qualifiers first, stars attached to the end ("const char*", "uint32_t**").

// IsPointer reports whether t is a pointer type.
func IsPointer(t string) bool {
	return strings.HasSuffix(strings.TrimSpace(t), "*")
}

// IsFuncPointer reports whether t is a function pointer type.
func IsFuncPointer(t string) bool {
	return strings.Contains(t, "(*)")
}

// Elem strips one level of pointer, and the const qualifier of the pointee.
func Elem(t string) string {
	t = strings.TrimSuffix(strings.TrimSpace(t), "*")
	return strings.TrimSpace(strings.TrimPrefix(t, "const "))
}

// IsConst reports whether the pointee (or the value) is const qualified.
func IsConst(t string) bool {
	return strings.HasPrefix(strings.TrimSpace(t), "const ")
}

// IsCString reports whether t is a NUL-terminated string.
func IsCString(t string) bool {
	switch strings.TrimSpace(t) {
	case "char*", "const char*":
		return true
	}
	return false
}

// IsVoidPointer reports an untyped pointer.
func IsVoidPointer(t string) bool {
	return IsPointer(t) && Elem(t) == "void"
}

var integerTypes = map[string]bool{
	"char": true, "signed char": true, "unsigned char": true,
	"short": true, "unsigned short": true,
	"int": true, "unsigned": true, "unsigned int": true,
	"long": true, "unsigned long": true,
	"long long": true, "unsigned long long": true,
	"int8_t": true, "uint8_t": true, "int16_t": true, "uint16_t": true,
	"int32_t": true, "uint32_t": true, "int64_t": true, "uint64_t": true,
	"size_t": true, "ssize_t": true, "intptr_t": true, "uintptr_t": true,
}

// IsInteger reports whether t is a built-in integer type.
func IsInteger(t string) bool {
	return integerTypes[strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "const "))]
}
