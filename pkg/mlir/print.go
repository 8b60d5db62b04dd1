package mlir

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// The text form is MLIR-flavored and is what tests assert on, so it should
// stay stable: generic operation syntax, one operation per line, nested
// regions indented.

// String renders the whole function.
func (fn *Func) String() string {
	var sb strings.Builder
	_ = fn.Write(&sb, "")
	return sb.String()
}

// Write renders the function to the given writer.
func (fn *Func) Write(writer io.Writer, indentation string) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	w("%sfunc @%s(", indentation, fn.Name)
	entry := fn.EntryBlock()
	for i, arg := range entry.Arguments() {
		if i > 0 {
			w(", ")
		}
		w("%s: %s", arg, arg.Shape())
	}
	w(") {\n")
	for _, op := range entry.Operations() {
		if err != nil {
			return err
		}
		err = op.Write(writer, indentation+"  ")
	}
	w("%s}\n", indentation)
	return err
}

// String renders the operation, including nested regions.
func (op *Operation) String() string {
	var sb strings.Builder
	_ = op.Write(&sb, "")
	return sb.String()
}

// Write renders the operation to the given writer.
func (op *Operation) Write(writer io.Writer, indentation string) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	w("%s", indentation)
	for i, result := range op.results {
		if i > 0 {
			w(", ")
		}
		w("%s", result)
	}
	if len(op.results) > 0 {
		w(" = ")
	}
	w("%q(", op.opType.String())
	for i, operand := range op.operands {
		if i > 0 {
			w(", ")
		}
		if operand == nil {
			w("<<nil>>")
		} else {
			w("%s", operand)
		}
	}
	w(")")
	if len(op.Attributes) > 0 {
		w(" {")
		keys := make([]string, 0, len(op.Attributes))
		for key := range op.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for i, key := range keys {
			if i > 0 {
				w(", ")
			}
			switch value := op.Attributes[key].(type) {
			case string:
				w("%s = %q", key, value)
			default:
				w("%s = %v", key, value)
			}
		}
		w("}")
	}
	for _, region := range op.regions {
		w(" ({\n")
		for _, block := range region.Blocks() {
			if err != nil {
				return err
			}
			err = block.write(writer, indentation+"  ")
		}
		w("%s})", indentation)
	}
	w(" : (")
	for i, operand := range op.operands {
		if i > 0 {
			w(", ")
		}
		if operand == nil {
			w("<<nil>>")
		} else {
			w("%s", operand.Shape())
		}
	}
	w(") -> (")
	for i, result := range op.results {
		if i > 0 {
			w(", ")
		}
		w("%s", result.Shape())
	}
	w(")\n")
	return err
}

// write renders a block inside a region: a header with the block arguments,
// then the operations.
func (b *Block) write(writer io.Writer, indentation string) error {
	var err error
	w := func(format string, args ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(writer, format, args...)
	}

	if len(b.args) > 0 {
		w("%s^bb(", indentation)
		for i, arg := range b.args {
			if i > 0 {
				w(", ")
			}
			w("%s: %s", arg, arg.Shape())
		}
		w("):\n")
	}
	for _, op := range b.ops {
		if err != nil {
			return err
		}
		err = op.Write(writer, indentation+"  ")
	}
	return err
}
