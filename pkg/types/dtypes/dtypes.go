// Package dtypes defines the element types used by the device IR tensors.
package dtypes

import (
	"fmt"
	"math"
	"strconv"

	"github.com/x448/float16"
)

// DType is the element type of a tensor.
type DType int

const (
	InvalidDType DType = iota
	Bool
	Int32
	Int64
	F16
	F32
	F64

	// Resource is the type of a handle to a mutable variable. A resource
	// tensor does not carry the variable's value, only a reference to it.
	Resource
)

// String implements fmt.Stringer.
func (dtype DType) String() string {
	switch dtype {
	case Bool:
		return "Bool"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case F16:
		return "F16"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case Resource:
		return "Resource"
	default:
		return fmt.Sprintf("DType(%d)", int(dtype))
	}
}

// ToMLIR returns the MLIR string representation of the DType.
func (dtype DType) ToMLIR() string {
	switch dtype {
	case Bool:
		return "i1"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case F16:
		return "f16"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Resource:
		return "!tf.resource"
	default:
		return fmt.Sprintf("unknown_dtype<%s>", dtype.String())
	}
}

// IsFloat returns whether the DType is a floating point type.
func (dtype DType) IsFloat() bool {
	return dtype == F16 || dtype == F32 || dtype == F64
}

// FormatScalar formats one scalar of the given DType for the IR text form.
// The scalar is given in its raw representation: for integer (and bool) types
// the value itself, for float types the IEEE bits of the value, widened to
// uint64. F16 bits are decoded with the float16 package.
func (dtype DType) FormatScalar(raw uint64) string {
	switch dtype {
	case Bool:
		if raw != 0 {
			return "true"
		}
		return "false"
	case Int32:
		return strconv.FormatInt(int64(int32(raw)), 10)
	case Int64:
		return strconv.FormatInt(int64(raw), 10)
	case F16:
		return strconv.FormatFloat(float64(float16.Frombits(uint16(raw)).Float32()), 'g', -1, 32)
	case F32:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(raw))), 'g', -1, 32)
	case F64:
		return strconv.FormatFloat(math.Float64frombits(raw), 'g', -1, 64)
	default:
		return fmt.Sprintf("<%s:%d>", dtype, raw)
	}
}

// ScalarBits converts a float64 to the raw representation FormatScalar
// expects for the given DType. Integer types are truncated.
func ScalarBits(dtype DType, value float64) uint64 {
	switch dtype {
	case Bool:
		if value != 0 {
			return 1
		}
		return 0
	case Int32:
		return uint64(uint32(int32(value)))
	case Int64:
		return uint64(int64(value))
	case F16:
		return uint64(float16.Fromfloat32(float32(value)).Bits())
	case F32:
		return uint64(math.Float32bits(float32(value)))
	case F64:
		return math.Float64bits(value)
	default:
		return 0
	}
}
