package diag

import "fmt"

func New(sev Severity, code Code, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
	}
}

func Infof(code Code, format string, args ...interface{}) Diagnostic {
	return New(SevInfo, code, fmt.Sprintf(format, args...))
}

func Warningf(code Code, format string, args ...interface{}) Diagnostic {
	return New(SevWarning, code, fmt.Sprintf(format, args...))
}

func Errorf(code Code, format string, args ...interface{}) Diagnostic {
	return New(SevError, code, fmt.Sprintf(format, args...))
}

// Fatalf builds an error diagnostic that halts the owning context.
func Fatalf(code Code, format string, args ...interface{}) Diagnostic {
	return Errorf(code, format, args...).AsFatal()
}
