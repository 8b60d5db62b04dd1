package transforms

import (
	"testing"

	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/pkg/mlir"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

func runClusterFormation(fn *mlir.Func) error {
	pass := must1(New("replicate-cluster-formation"))
	return pass.Run(fn)
}

func addMetadata(fn *mlir.Func, group string, numReplicas int, extra map[string]any) {
	attrs := map[string]any{
		replicateAttr:   group,
		numReplicasAttr: numReplicas,
		nameAttr:        group + "_metadata",
	}
	for key, value := range extra {
		attrs[key] = value
	}
	fn.AppendOp(optypes.ReplicateMetadata, nil, nil, attrs)
}

func TestClusterFormationSingleReplica(t *testing.T) {
	fn := mlir.NewFunc("main", unrankedI32, unrankedI32)
	a, b := fn.Argument(0), fn.Argument(1)
	addMetadata(fn, "c0", 1, map[string]any{deviceAttr: "/device:0"})
	addOp := fn.AppendOp(optypes.AddV2, []shapes.Shape{unrankedI32}, []*mlir.Value{a, b},
		map[string]any{replicateAttr: "c0"})
	mulOp := fn.AppendOp(optypes.Mul, []shapes.Shape{unrankedI32},
		[]*mlir.Value{addOp.Result(0), b}, map[string]any{replicateAttr: "c0"})
	outOp := fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32},
		[]*mlir.Value{mulOp.Result(0)}, nil)

	must(runClusterFormation(fn))

	ops := fn.EntryBlock().Operations()
	if len(ops) != 2 || ops[0].OpType() != optypes.Launch || ops[1] != outOp {
		t.Fatalf("expected [launch, user] at the top level:\n%s", fn)
	}
	launch := ops[0]

	if device, _ := launch.StrAttr(deviceAttr); device != "/device:0" {
		t.Errorf("metadata device not copied to the launch, got %q", device)
	}
	if _, ok := launch.IntAttr(numReplicasAttr); ok {
		t.Errorf("num_replicas must not remain on the launch:\n%s", fn)
	}

	body := launch.Region(0).EntryBlock()
	bodyOps := body.Operations()
	if len(bodyOps) != 3 || bodyOps[0] != addOp || bodyOps[1] != mulOp {
		t.Fatalf("cluster ops should have moved into the launch body:\n%s", fn)
	}
	if _, ok := addOp.StrAttr(replicateAttr); ok {
		t.Error("clustering attribute should be dropped from cluster ops")
	}
	terminator := body.Terminator()
	if terminator == nil || terminator.NumOperands() != 1 || terminator.Operand(0) != mulOp.Result(0) {
		t.Fatalf("launch body must yield the externally used result:\n%s", fn)
	}
	// The add result is only used within the cluster: pruned from the launch results.
	if launch.NumResults() != 1 {
		t.Fatalf("launch should have exactly 1 result, got %d:\n%s", launch.NumResults(), fn)
	}
	if outOp.Operand(0) != launch.Result(0) {
		t.Errorf("external use not rewired to the launch result:\n%s", fn)
	}
}

func TestClusterFormationReplicated(t *testing.T) {
	fn := mlir.NewFunc("main", unrankedI32, unrankedI32)
	a, b := fn.Argument(0), fn.Argument(1)
	addMetadata(fn, "c0", 2, nil)
	inputOp := fn.AppendOp(optypes.ReplicatedInput, []shapes.Shape{unrankedI32}, []*mlir.Value{a, b}, nil)
	addOp := fn.AppendOp(optypes.AddV2, []shapes.Shape{unrankedI32},
		[]*mlir.Value{inputOp.Result(0), inputOp.Result(0)}, map[string]any{replicateAttr: "c0"})
	outputOp := fn.AppendOp(optypes.ReplicatedOutput,
		[]shapes.Shape{unrankedI32, unrankedI32}, []*mlir.Value{addOp.Result(0)}, nil)
	user0 := fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32}, []*mlir.Value{outputOp.Result(0)}, nil)
	user1 := fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32}, []*mlir.Value{outputOp.Result(1)}, nil)

	must(runClusterFormation(fn))

	ops := fn.EntryBlock().Operations()
	if len(ops) != 3 {
		t.Fatalf("expected [replicate, user0, user1] at the top level:\n%s", fn)
	}
	replicate, ok := mlir.AsReplicate(ops[0])
	if !ok {
		t.Fatalf("first op should be a tf_device.replicate:\n%s", fn)
	}
	if got := replicate.NumReplicas(); got != 2 {
		t.Errorf("replicate n = %d, want 2", got)
	}
	if replicate.ReplicatedOperand(0, 0) != a || replicate.ReplicatedOperand(0, 1) != b {
		t.Errorf("replicate operands should be the replicated input's operands:\n%s", fn)
	}

	bodyOps := replicate.Body().Operations()
	if len(bodyOps) != 2 || bodyOps[0].OpType() != optypes.Launch {
		t.Fatalf("replicate body should hold [launch, return]:\n%s", fn)
	}
	launch := bodyOps[0]
	launchBody := launch.Region(0).EntryBlock()
	if len(launchBody.Operations()) != 2 || launchBody.Operations()[0] != addOp {
		t.Fatalf("cluster op should sit inside the launch:\n%s", fn)
	}
	blockArg := replicate.Body().Argument(0)
	if addOp.Operand(0) != blockArg || addOp.Operand(1) != blockArg {
		t.Errorf("cluster op should read the replicate block argument:\n%s", fn)
	}

	// Replicated forwarding ops are gone; users read per-replica replicate results.
	fn.Walk(func(op *mlir.Operation) mlir.WalkResult {
		if op.OpType() == optypes.ReplicatedInput || op.OpType() == optypes.ReplicatedOutput {
			t.Errorf("forwarding op %s should have been erased:\n%s", op.OpType(), fn)
		}
		return mlir.Advance
	})
	if user0.Operand(0) != replicate.Operation().Result(0) || user1.Operand(0) != replicate.Operation().Result(1) {
		t.Errorf("users should read the per-replica replicate results:\n%s", fn)
	}
}

func TestClusterFormationForwardsSingleReplicaInputs(t *testing.T) {
	fn := mlir.NewFunc("main", unrankedI32)
	a := fn.Argument(0)
	addMetadata(fn, "c0", 1, nil)
	inputOp := fn.AppendOp(optypes.ReplicatedInput, []shapes.Shape{unrankedI32}, []*mlir.Value{a}, nil)
	addOp := fn.AppendOp(optypes.AddV2, []shapes.Shape{unrankedI32},
		[]*mlir.Value{inputOp.Result(0), inputOp.Result(0)}, map[string]any{replicateAttr: "c0"})

	must(runClusterFormation(fn))

	// 1:1 forwarding: with one replica there is no replicate construct and the
	// input op forwards its operand.
	if addOp.Operand(0) != a || addOp.Operand(1) != a {
		t.Fatalf("single-replica input should forward its operand:\n%s", fn)
	}
	fn.Walk(func(op *mlir.Operation) mlir.WalkResult {
		if op.OpType() == optypes.ReplicatedInput {
			t.Errorf("forwarding op should have been erased:\n%s", fn)
		}
		return mlir.Advance
	})
}

func TestClusterFormationPrecedingUsers(t *testing.T) {
	fn := mlir.NewFunc("main", unrankedI32, unrankedI32)
	a, b := fn.Argument(0), fn.Argument(1)
	addMetadata(fn, "c0", 1, nil)
	addOp := fn.AppendOp(optypes.AddV2, []shapes.Shape{unrankedI32}, []*mlir.Value{a, b},
		map[string]any{replicateAttr: "c0"})
	// A user of the cluster interleaved between the cluster ops.
	interleaved := fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32},
		[]*mlir.Value{addOp.Result(0)}, nil)
	fn.AppendOp(optypes.Mul, []shapes.Shape{unrankedI32}, []*mlir.Value{a, b},
		map[string]any{replicateAttr: "c0"})

	must(runClusterFormation(fn))

	ops := fn.EntryBlock().Operations()
	if len(ops) != 2 || ops[0].OpType() != optypes.Launch || ops[1] != interleaved {
		t.Fatalf("interleaved user should move after the launch:\n%s", fn)
	}
	if interleaved.Operand(0) != ops[0].Result(0) {
		t.Errorf("interleaved user should read the launch result:\n%s", fn)
	}
}

func TestClusterFormationErrors(t *testing.T) {
	t.Run("missing metadata", func(t *testing.T) {
		fn := mlir.NewFunc("main", unrankedI32)
		fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32},
			[]*mlir.Value{fn.Argument(0)}, map[string]any{replicateAttr: "c0"})
		if err := runClusterFormation(fn); err == nil {
			t.Error("a cluster without metadata should fail")
		}
	})

	t.Run("empty group attribute", func(t *testing.T) {
		fn := mlir.NewFunc("main", unrankedI32)
		addMetadata(fn, "c0", 1, nil)
		fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32},
			[]*mlir.Value{fn.Argument(0)}, map[string]any{replicateAttr: ""})
		if err := runClusterFormation(fn); err == nil {
			t.Error("an empty clustering attribute should fail")
		}
	})

	t.Run("duplicate metadata", func(t *testing.T) {
		fn := mlir.NewFunc("main")
		addMetadata(fn, "c0", 1, nil)
		addMetadata(fn, "c0", 1, nil)
		if err := runClusterFormation(fn); err == nil {
			t.Error("duplicate metadata for a group should fail")
		}
	})

	t.Run("replicated input arity", func(t *testing.T) {
		fn := mlir.NewFunc("main", unrankedI32)
		addMetadata(fn, "c0", 2, nil)
		inputOp := fn.AppendOp(optypes.ReplicatedInput, []shapes.Shape{unrankedI32},
			[]*mlir.Value{fn.Argument(0)}, nil)
		fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32},
			[]*mlir.Value{inputOp.Result(0)}, map[string]any{replicateAttr: "c0"})
		if err := runClusterFormation(fn); err == nil {
			t.Error("a replicated input with the wrong arity should fail")
		}
	})

	t.Run("non forwarding consumer", func(t *testing.T) {
		fn := mlir.NewFunc("main", unrankedI32, unrankedI32)
		addMetadata(fn, "c0", 2, nil)
		inputOp := fn.AppendOp(optypes.ReplicatedInput, []shapes.Shape{unrankedI32},
			[]*mlir.Value{fn.Argument(0), fn.Argument(1)}, nil)
		addOp := fn.AppendOp(optypes.AddV2, []shapes.Shape{unrankedI32},
			[]*mlir.Value{inputOp.Result(0), inputOp.Result(0)}, map[string]any{replicateAttr: "c0"})
		fn.AppendOp(optypes.Identity, []shapes.Shape{unrankedI32}, []*mlir.Value{addOp.Result(0)}, nil)
		if err := runClusterFormation(fn); err == nil {
			t.Error("a replicated cluster result consumed by a non-forwarding op should fail")
		}
	})
}

func TestPassRegistry(t *testing.T) {
	names := Names()
	wantNames := []string{"replicate-cluster-formation", "replicate-invariant-op-hoisting"}
	for _, want := range wantNames {
		found := false
		for _, name := range names {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("pass %q not registered (have %v)", want, names)
		}
	}

	pass := must1(New("replicate-invariant-op-hoisting"))
	if pass.Description() == "" {
		t.Error("registered pass should carry a description")
	}
	if _, err := New("no-such-pass"); err == nil {
		t.Error("unknown pass name should fail")
	}
}
