package mlir

import (
	"strings"
	"testing"

	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/pkg/types/dtypes"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

func TestPrintFunc(t *testing.T) {
	tensor := shapes.MakeUnranked(dtypes.Int32)
	fn := NewFunc("main", tensor, tensor)
	replicate := must1(NewReplicate(fn, 2, []ReplicatedInputSpec{
		{PerReplica: []*Value{fn.Argument(0), fn.Argument(1)}, Shape: tensor, Name: "ri"},
	}, nil))
	must(fn.EntryBlock().Append(replicate.Operation()))
	shape := fn.NewOp(optypes.Shape,
		[]shapes.Shape{shapes.Make(dtypes.Int32, shapes.DimUnknown)},
		[]*Value{replicate.Body().Argument(0)}, nil)
	must(replicate.Body().Append(shape))
	must(replicate.Body().Append(fn.NewOp(optypes.Return, nil, nil, nil)))

	text := fn.String()
	for _, want := range []string{
		`func @main(%arg0: tensor<*xi32>, %arg1: tensor<*xi32>) {`,
		`"tf_device.replicate"(%arg0, %arg1) {n = 2} ({`,
		`^bb(%ri: tensor<*xi32>):`,
		`= "tf.Shape"(%ri) : (tensor<*xi32>) -> (tensor<?xi32>)`,
		`"tf_device.return"() : () -> ()`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered function missing %q:\n%s", want, text)
		}
	}
}

func TestPrintAttributes(t *testing.T) {
	fn := NewFunc("main")
	op := fn.AppendOp(optypes.ReplicateMetadata, nil, nil, map[string]any{
		"num_replicas": 2,
		"_replicate":   "cluster0",
	})
	text := op.String()
	// Attributes print sorted by key.
	want := `{_replicate = "cluster0", num_replicas = 2}`
	if !strings.Contains(text, want) {
		t.Errorf("rendered op missing %q:\n%s", want, text)
	}
}

func TestLiteralString(t *testing.T) {
	testCases := []struct {
		literal Literal
		want    string
	}{
		{ScalarLiteral(dtypes.Int32, 5), "dense<5> : tensor<i32>"},
		{VectorLiteral(dtypes.Int64, 2, 3), "dense<[2, 3]> : tensor<2xi64>"},
		{ScalarLiteral(dtypes.F16, 1.5), "dense<1.5> : tensor<f16>"},
		{ScalarLiteral(dtypes.F32, 0.25), "dense<0.25> : tensor<f32>"},
		{ScalarLiteral(dtypes.Bool, 1), "dense<true> : tensor<i1>"},
	}
	for _, tc := range testCases {
		if got := tc.literal.String(); got != tc.want {
			t.Errorf("Literal.String() = %q, want %q", got, tc.want)
		}
	}
}

func TestLiteralInts(t *testing.T) {
	values, ok := VectorLiteral(dtypes.Int32, 4, -1).Ints()
	if !ok || len(values) != 2 || values[0] != 4 || values[1] != -1 {
		t.Fatalf("Ints() = %v, %v; want [4 -1], true", values, ok)
	}
	if _, ok := ScalarLiteral(dtypes.F32, 1).Ints(); ok {
		t.Error("float literal should not extract as ints")
	}
}
