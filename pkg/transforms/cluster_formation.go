package transforms

import (
	"github.com/pkg/errors"

	"github.com/gomlx/go-mlir/internal/optypes"
	"github.com/gomlx/go-mlir/internal/utils"
	"github.com/gomlx/go-mlir/pkg/mlir"
	"github.com/gomlx/go-mlir/pkg/types/shapes"
)

// This pass takes ops with the same `_replicate` attribute in a block and
// clusters them together under a tf_device.launch. Associated
// tf.ReplicateMetadata ops are removed and their attributes are copied over
// to the launch. If a cluster should be replicated, the launch is wrapped
// further in a tf_device.replicate, the construct the hoisting pass then
// optimizes. Side effecting ops are not handled yet.

const (
	replicateAttr   = "_replicate"
	deviceAttr      = "device"
	nameAttr        = "name"
	numReplicasAttr = "num_replicas"
)

type replicateClusterFormation struct{}

func (replicateClusterFormation) Name() string {
	return "replicate-cluster-formation"
}

func (replicateClusterFormation) Description() string {
	return "Form clusters from operations assigned to the same replication group"
}

func init() {
	Register(func() Pass { return replicateClusterFormation{} })
}

// collectMetadata maps each `_replicate` attribute to the attributes of its
// tf.ReplicateMetadata op and removes those ops. Duplicate metadata for the
// same group is an error.
func collectMetadata(fn *mlir.Func) (map[string]map[string]any, error) {
	metadata := make(map[string]map[string]any)
	var err error
	fn.Walk(func(op *mlir.Operation) mlir.WalkResult {
		if op.OpType() != optypes.ReplicateMetadata {
			return mlir.Advance
		}
		group, ok := op.StrAttr(replicateAttr)
		if !ok || group == "" {
			err = errors.Errorf("%s requires %q string attribute", op.OpType(), replicateAttr)
			return mlir.Interrupt
		}
		if _, dup := metadata[group]; dup {
			err = errors.Errorf("multiple %s ops with the same %q attribute %q found",
				op.OpType(), replicateAttr, group)
			return mlir.Interrupt
		}
		attrs := make(map[string]any, len(op.Attributes))
		for key, value := range op.Attributes {
			if key == nameAttr {
				continue
			}
			attrs[key] = value
		}
		metadata[group] = attrs
		if err = op.Erase(); err != nil {
			return mlir.Interrupt
		}
		return mlir.Advance
	})
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

// collectClusterOps groups the block's ops by their `_replicate` attribute,
// returning the groups in order of first appearance.
func collectClusterOps(block *mlir.Block) (map[string][]*mlir.Operation, []string, error) {
	clusters := make(map[string][]*mlir.Operation)
	var order []string
	for _, op := range block.Operations() {
		group, ok := op.StrAttr(replicateAttr)
		if !ok {
			continue
		}
		if group == "" {
			return nil, nil, errors.Errorf("attribute %q is empty on %s", replicateAttr, op.OpType())
		}
		if _, seen := clusters[group]; !seen {
			order = append(order, group)
		}
		clusters[group] = append(clusters[group], op)
	}
	return clusters, order, nil
}

// shouldMoveOpAfterCluster checks if an op is a (transitive) user of cluster
// ops but sits before the cluster's end: such ops must be moved after the
// launch so the launch results can feed them.
func shouldMoveOpAfterCluster(block *mlir.Block, op *mlir.Operation,
	clusterOps, precedingUsers utils.Set[*mlir.Operation]) bool {
	result := op.Walk(func(innerOp *mlir.Operation) mlir.WalkResult {
		for _, operand := range innerOp.Operands() {
			def := operand.DefiningOp()
			// Operands may not have a defining op (block arguments) or come
			// from a different block.
			if def == nil || def.Block() != block {
				continue
			}
			if clusterOps.Has(def) || precedingUsers.Has(def) {
				return mlir.Interrupt
			}
		}
		return mlir.Advance
	})
	return result.WasInterrupted()
}

// collectPrecedingUsers returns, in block order, the non-cluster ops between
// the first and last cluster op that (transitively) use cluster results.
func collectPrecedingUsers(block *mlir.Block, clusterOps []*mlir.Operation,
	clusterSet utils.Set[*mlir.Operation]) []*mlir.Operation {
	var precedingUsers []*mlir.Operation
	precedingSet := utils.MakeSet[*mlir.Operation]()

	inRange := false
	for _, op := range block.Operations() {
		if op == clusterOps[0] {
			inRange = true
		}
		if op == clusterOps[len(clusterOps)-1] {
			break
		}
		if !inRange || clusterSet.Has(op) {
			continue
		}
		if shouldMoveOpAfterCluster(block, op, clusterSet, precedingSet) {
			precedingUsers = append(precedingUsers, op)
			precedingSet.Insert(op)
		}
	}
	return precedingUsers
}

// collectClusterResults returns the cluster op results used outside of the
// cluster. These become the results of the launch; results only consumed
// within the cluster are pruned.
func collectClusterResults(block *mlir.Block, clusterOps []*mlir.Operation,
	clusterSet utils.Set[*mlir.Operation]) []*mlir.Value {
	var results []*mlir.Value
	for _, op := range clusterOps {
		for _, result := range op.Results() {
			for _, use := range result.Uses() {
				if !clusterSet.Has(block.FindAncestorOp(use.Op)) {
					results = append(results, result)
					break
				}
			}
		}
	}
	return results
}

// createLaunchForCluster creates a tf_device.launch at the position of the
// cluster's last op, with one result per externally used cluster result and
// a tf_device.return terminator yielding them.
func createLaunchForCluster(lastClusterOp *mlir.Operation, results []*mlir.Value) (*mlir.Operation, error) {
	fn := lastClusterOp.Func()
	if fn == nil {
		return nil, errors.Errorf("cluster op %s is not attached to a function", lastClusterOp.OpType())
	}
	resultShapes := make([]shapes.Shape, len(results))
	for i, result := range results {
		resultShapes[i] = result.Shape()
	}
	// The device is a placeholder, populated later from the cluster metadata.
	launch := fn.NewOp(optypes.Launch, resultShapes, nil, map[string]any{deviceAttr: ""})
	body := launch.AddRegion().AddBlock()
	if err := body.Append(fn.NewOp(optypes.Return, nil, results, nil)); err != nil {
		return nil, err
	}
	if err := lastClusterOp.Block().InsertBefore(lastClusterOp, launch); err != nil {
		return nil, err
	}
	return launch, nil
}

// moveClusterOpsToLaunch moves the cluster ops into the launch body, before
// its terminator, dropping the clustering attributes they carried.
func moveClusterOpsToLaunch(launch *mlir.Operation, clusterOps []*mlir.Operation) error {
	terminator := launch.Region(0).EntryBlock().Terminator()
	for _, op := range clusterOps {
		op.RemoveAttr(replicateAttr)
		op.RemoveAttr(deviceAttr)
		if err := op.MoveBefore(terminator); err != nil {
			return err
		}
	}
	return nil
}

// updateLaunchResultExternalUses rewires uses of cluster results outside the
// launch body to the corresponding launch results.
func updateLaunchResultExternalUses(launch *mlir.Operation, results []*mlir.Value) {
	body := launch.Region(0).EntryBlock()
	for i, oldResult := range results {
		for _, use := range oldResult.Uses() {
			if body.FindAncestorOp(use.Op) == nil {
				use.Op.SetOperand(use.Index, launch.Result(i))
			}
		}
	}
}

// movePrecedingUsers moves cluster users that sat before the cluster to just
// after the launch, preserving their relative order.
func movePrecedingUsers(launch *mlir.Operation, precedingUsers []*mlir.Operation) error {
	mark := launch
	for _, user := range precedingUsers {
		if err := user.MoveAfter(mark); err != nil {
			return err
		}
		mark = user
	}
	return nil
}

// replicateCluster wraps the launch in a tf_device.replicate when the cluster
// metadata asks for more than one replica. The replicate is fed by the
// tf.ReplicatedInput ops used by the launch body; tf.ReplicatedOutput
// consumers of the launch results are rewired to the replicate results.
func replicateCluster(launch *mlir.Operation, numReplicas int) error {
	// No need to replicate.
	if numReplicas == 1 {
		return nil
	}
	if numReplicas < 1 {
		return errors.Errorf("requires %q int attribute to be at least 1", numReplicasAttr)
	}

	fn := launch.Func()
	launchBody := launch.Region(0)

	// Collect the tf.ReplicatedInput ops feeding values into the launch body
	// from above, in use order.
	var replicatedInputOps []*mlir.Operation
	seenInputs := utils.MakeSet[*mlir.Operation]()
	launchBody.Walk(func(op *mlir.Operation) mlir.WalkResult {
		for _, operand := range op.Operands() {
			parentRegion := operand.ParentRegion()
			if parentRegion == launchBody || launchBody.IsProperAncestorOf(parentRegion) {
				continue
			}
			def := operand.DefiningOp()
			if def != nil && def.OpType() == optypes.ReplicatedInput && !seenInputs.Has(def) {
				seenInputs.Insert(def)
				replicatedInputOps = append(replicatedInputOps, def)
			}
		}
		return mlir.Advance
	})

	// Each replicated input must supply one operand per replica.
	inputSpecs := make([]mlir.ReplicatedInputSpec, 0, len(replicatedInputOps))
	for _, input := range replicatedInputOps {
		if input.NumOperands() != numReplicas {
			return errors.Errorf("%s requires %d operands, got %d",
				input.OpType(), numReplicas, input.NumOperands())
		}
		inputSpecs = append(inputSpecs, mlir.ReplicatedInputSpec{
			PerReplica: input.Operands(),
			Shape:      input.Result(0).Shape(),
		})
	}

	// The replicate yields every launch result once per replica, grouped as
	// idx*n + r.
	resultShapes := make([]shapes.Shape, 0, launch.NumResults()*numReplicas)
	for _, result := range launch.Results() {
		for replica := 0; replica < numReplicas; replica++ {
			resultShapes = append(resultShapes, result.Shape())
		}
	}
	replicate, err := mlir.NewReplicate(fn, numReplicas, inputSpecs, resultShapes)
	if err != nil {
		return err
	}
	if err := launch.Block().InsertBefore(launch, replicate.Operation()); err != nil {
		return err
	}

	// Rewire tf.ReplicatedOutput consumers of the launch results to the
	// per-replica replicate results.
	for idx, result := range launch.Results() {
		for _, use := range result.Uses() {
			def := use.Op
			if def.OpType() != optypes.ReplicatedOutput {
				return errors.Errorf("requires output of %s to lead to a %s op",
					launch.OpType(), optypes.ReplicatedOutput)
			}
			if def.NumResults() != numReplicas {
				return errors.Errorf("%s requires %d results, got %d",
					def.OpType(), numReplicas, def.NumResults())
			}
			for replica := 0; replica < numReplicas; replica++ {
				def.Result(replica).ReplaceAllUsesWith(
					replicate.Operation().Result(idx*numReplicas + replica))
			}
		}
	}

	// Update uses of the replicated inputs within the launch body to the
	// replicate block arguments.
	for argIndex, input := range replicatedInputOps {
		blockArg := replicate.Body().Argument(argIndex)
		for _, use := range input.Result(0).Uses() {
			parentRegion := use.Op.ParentRegion()
			if parentRegion == launchBody || launchBody.IsProperAncestorOf(parentRegion) {
				use.Op.SetOperand(use.Index, blockArg)
			}
		}
	}

	// Close the replicate body and move the launch into it.
	returnOp := fn.NewOp(optypes.Return, nil, launch.Results(), nil)
	if err := replicate.Body().Append(returnOp); err != nil {
		return err
	}
	return launch.MoveBefore(returnOp)
}

// formClustersInBlock forms one launch (possibly replicated) per `_replicate`
// group found in the block.
func formClustersInBlock(block *mlir.Block, metadata map[string]map[string]any) error {
	clusters, order, err := collectClusterOps(block)
	if err != nil {
		return err
	}
	for _, group := range order {
		clusterOps := clusters[group]
		groupMetadata, ok := metadata[group]
		if !ok {
			return errors.Errorf("%s for associated %q attribute %q is missing",
				optypes.ReplicateMetadata, replicateAttr, group)
		}

		clusterSet := utils.MakeSet[*mlir.Operation](len(clusterOps))
		clusterSet.Insert(clusterOps...)

		precedingUsers := collectPrecedingUsers(block, clusterOps, clusterSet)
		results := collectClusterResults(block, clusterOps, clusterSet)

		launch, err := createLaunchForCluster(clusterOps[len(clusterOps)-1], results)
		if err != nil {
			return err
		}
		if err := moveClusterOpsToLaunch(launch, clusterOps); err != nil {
			return err
		}
		updateLaunchResultExternalUses(launch, results)
		if err := movePrecedingUsers(launch, precedingUsers); err != nil {
			return err
		}

		numReplicas, ok := groupMetadata[numReplicasAttr].(int)
		if !ok {
			return errors.Errorf("requires %q int attribute on %s metadata",
				numReplicasAttr, group)
		}
		if err := replicateCluster(launch, numReplicas); err != nil {
			return err
		}

		// Copy the metadata attributes over to the launch; the cluster has
		// already been replicated as needed, so num_replicas is dropped.
		for key, value := range groupMetadata {
			launch.Attributes[key] = value
		}
		launch.RemoveAttr(numReplicasAttr)
	}
	return nil
}

// removeReplicatedInputOutputOps erases the leftover tf.ReplicatedInput and
// tf.ReplicatedOutput forwarding ops. For clusters of one replica no
// replicate was created, so 1:1 ops simply forward their operand.
func removeReplicatedInputOutputOps(fn *mlir.Func) error {
	var toRemove []*mlir.Operation
	fn.Walk(func(op *mlir.Operation) mlir.WalkResult {
		if op.OpType() == optypes.ReplicatedInput || op.OpType() == optypes.ReplicatedOutput {
			toRemove = append(toRemove, op)
		}
		return mlir.Advance
	})
	for _, op := range toRemove {
		if op.NumOperands() == 1 && op.NumResults() == 1 {
			op.Result(0).ReplaceAllUsesWith(op.Operand(0))
		}
		if err := op.Erase(); err != nil {
			return errors.Wrapf(err, "expects %s to have no uses", op.OpType())
		}
	}
	return nil
}

// Run forms clusters from ops assigned to the same replication group, in
// every block of the function.
func (p replicateClusterFormation) Run(fn *mlir.Func) error {
	dumpFunc("replicate_cluster_formation_before", fn)

	metadata, err := collectMetadata(fn)
	if err != nil {
		return err
	}
	for _, block := range fn.Body().Blocks() {
		if err := formClustersInBlock(block, metadata); err != nil {
			return err
		}
	}
	if err := removeReplicatedInputOutputOps(fn); err != nil {
		return err
	}

	dumpFunc("replicate_cluster_formation_after", fn)
	return nil
}
