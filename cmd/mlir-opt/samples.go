package main

import (
	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/pkg/mlir"
	"github.com/gomlx/go-mlir/pkg/types/dtypes"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

var (
	sampleValues       []string
	sampleDescriptions []string
	sampleBuilders     = make(map[string]func() (*mlir.Func, error))
)

func registerSample(name, description string, builder func() (*mlir.Func, error)) {
	sampleValues = append(sampleValues, name)
	sampleDescriptions = append(sampleDescriptions, description)
	sampleBuilders[name] = builder
}

func init() {
	registerSample("shape-of-replicated-arg",
		"Replicate with a tf.Shape of a replicated tensor argument",
		buildShapeOfReplicatedArg)
	registerSample("shape-of-read-variable",
		"Replicate with a tf.Shape of a tf.ReadVariableOp of a replicated resource",
		buildShapeOfReadVariable)
	registerSample("clustered-ops",
		"Unclustered ops tagged with a replication group and its metadata",
		buildClusteredOps)
}

func buildShapeOfReplicatedArg() (*mlir.Func, error) {
	unranked := shapes.MakeUnranked(dtypes.F32)
	shapeResult := shapes.Make(dtypes.Int32, shapes.DimUnknown)

	fn := mlir.NewFunc("main", unranked, unranked)
	replicate, err := mlir.NewReplicate(fn, 2, []mlir.ReplicatedInputSpec{
		{PerReplica: []*mlir.Value{fn.Argument(0), fn.Argument(1)}, Shape: unranked, Name: "ri"},
	}, nil)
	if err != nil {
		return nil, err
	}
	body := replicate.Body()
	constOp := fn.NewOp(optypes.Const, []shapes.Shape{shapes.Make(dtypes.Int32)}, nil,
		map[string]any{"value": mlir.ScalarLiteral(dtypes.Int32, 1)})
	if err := body.Append(constOp); err != nil {
		return nil, err
	}
	shapeOp := fn.NewOp(optypes.Shape, []shapes.Shape{shapeResult},
		[]*mlir.Value{body.Argument(0)}, nil)
	if err := body.Append(shapeOp); err != nil {
		return nil, err
	}
	if err := body.Append(fn.NewOp(optypes.Return, nil, nil, nil)); err != nil {
		return nil, err
	}
	return fn, nil
}

func buildShapeOfReadVariable() (*mlir.Func, error) {
	resource := shapes.MakeUnranked(dtypes.Resource)
	unranked := shapes.MakeUnranked(dtypes.F32)
	shapeResult := shapes.Make(dtypes.Int32, shapes.DimUnknown)

	fn := mlir.NewFunc("main", resource, resource)
	replicate, err := mlir.NewReplicate(fn, 2, []mlir.ReplicatedInputSpec{
		{PerReplica: []*mlir.Value{fn.Argument(0), fn.Argument(1)}, Shape: resource, Name: "ri"},
	}, nil)
	if err != nil {
		return nil, err
	}
	body := replicate.Body()
	readOp := fn.NewOp(optypes.ReadVariable, []shapes.Shape{unranked},
		[]*mlir.Value{body.Argument(0)}, nil)
	shapeOp := fn.NewOp(optypes.Shape, []shapes.Shape{shapeResult},
		[]*mlir.Value{readOp.Result(0)}, nil)
	userOp := fn.NewOp(optypes.Identity, []shapes.Shape{shapeResult},
		[]*mlir.Value{shapeOp.Result(0)}, nil)
	for _, op := range []*mlir.Operation{readOp, shapeOp, userOp} {
		if err := body.Append(op); err != nil {
			return nil, err
		}
	}
	if err := body.Append(fn.NewOp(optypes.Return, nil, nil, nil)); err != nil {
		return nil, err
	}
	return fn, nil
}

func buildClusteredOps() (*mlir.Func, error) {
	unranked := shapes.MakeUnranked(dtypes.F32)

	fn := mlir.NewFunc("main", unranked, unranked)
	fn.AppendOp(optypes.ReplicateMetadata, nil, nil, map[string]any{
		"_replicate":   "cluster0",
		"num_replicas": 2,
		"device":       "/device:0",
	})
	inputOp := fn.AppendOp(optypes.ReplicatedInput, []shapes.Shape{unranked},
		[]*mlir.Value{fn.Argument(0), fn.Argument(1)}, nil)
	addOp := fn.AppendOp(optypes.AddV2, []shapes.Shape{unranked},
		[]*mlir.Value{inputOp.Result(0), inputOp.Result(0)},
		map[string]any{"_replicate": "cluster0"})
	outputOp := fn.AppendOp(optypes.ReplicatedOutput,
		[]shapes.Shape{unranked, unranked}, []*mlir.Value{addOp.Result(0)}, nil)
	fn.AppendOp(optypes.Identity, []shapes.Shape{unranked}, []*mlir.Value{outputOp.Result(0)}, nil)
	fn.AppendOp(optypes.Identity, []shapes.Shape{unranked}, []*mlir.Value{outputOp.Result(1)}, nil)
	return fn, nil
}
