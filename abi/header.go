package abi

import (
	"fmt"
	"io"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/cffi"
	"github.com/wippyai/cffi/layout"
)

// HeaderGuard is the include guard of the generated header.
const HeaderGuard = "CFFI_H"

// WriteHeader writes the C header declaring every export, the ErrorCode
// enum and the boundary records.
func WriteHeader(w io.Writer) error {
	var b strings.Builder

	b.WriteString("/* Generated by cffi header. DO NOT EDIT. */\n")
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", HeaderGuard, HeaderGuard)
	b.WriteString("#include <stdbool.h>\n#include <stddef.h>\n#include <stdint.h>\n\n")
	b.WriteString("#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n")

	b.WriteString("typedef enum ErrorCode {\n")
	for _, c := range cffi.ErrorCodes() {
		fmt.Fprintf(&b, "    %s = %d,\n", c, int32(c))
	}
	b.WriteString("} ErrorCode;\n")
	b.WriteString("_Static_assert(sizeof(ErrorCode) == 4, \"ErrorCode must be 32 bits\");\n\n")

	calc := layout.NewCalculator()
	for _, td := range layout.Records() {
		if err := writeRecord(&b, td, calc.Calculate(td)); err != nil {
			return err
		}
	}

	for _, e := range exports {
		fmt.Fprintf(&b, "/* %s */\n%s;\n\n", e.Doc, e.CDecl())
	}

	b.WriteString("#ifdef __cplusplus\n}\n#endif\n\n")
	fmt.Fprintf(&b, "#endif /* %s */\n", HeaderGuard)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeRecord(b *strings.Builder, td *wit.TypeDef, info layout.Info) error {
	rec, ok := td.Kind.(*wit.Record)
	if !ok || td.Name == nil {
		return fmt.Errorf("header: %s is not a named record", cType(td))
	}
	name := cTypeName(*td.Name)

	fmt.Fprintf(b, "typedef struct %s {\n", name)
	for _, f := range rec.Fields {
		fmt.Fprintf(b, "    %s %s;\n", cType(f.Type), cField(f.Name))
	}
	fmt.Fprintf(b, "} %s;\n", name)
	fmt.Fprintf(b, "_Static_assert(sizeof(%s) == %d, \"%s size\");\n", name, info.Size, name)
	fmt.Fprintf(b, "_Static_assert(_Alignof(%s) == %d, \"%s alignment\");\n", name, info.Align, name)
	for _, f := range rec.Fields {
		fmt.Fprintf(b, "_Static_assert(offsetof(%s, %s) == %d, \"%s.%s offset\");\n",
			name, cField(f.Name), info.Offset(f.Name), name, cField(f.Name))
	}
	b.WriteString("\n")
	return nil
}

// cField converts a kebab-case WIT field name to a C identifier.
func cField(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
