package mlir

// WalkResult signals whether a traversal should continue. It is a value, not
// an error: interrupting a walk is a normal early exit, it carries no failure.
type WalkResult int

const (
	// Advance continues the traversal.
	Advance WalkResult = iota
	// Interrupt aborts the traversal immediately.
	Interrupt
)

// WasInterrupted returns whether the walk ended with Interrupt.
func (w WalkResult) WasInterrupted() bool {
	return w == Interrupt
}

// Walk visits the operation itself, then every operation nested in its
// regions, in pre-order. The visitor can stop the traversal by returning
// Interrupt.
//
// Block operation lists are snapshotted before iterating, so the visitor may
// move or erase operations it has been handed.
func (op *Operation) Walk(visit func(*Operation) WalkResult) WalkResult {
	if visit(op) == Interrupt {
		return Interrupt
	}
	for _, region := range op.regions {
		if region.Walk(visit) == Interrupt {
			return Interrupt
		}
	}
	return Advance
}

// Walk traverses every operation of the region in pre-order.
func (r *Region) Walk(visit func(*Operation) WalkResult) WalkResult {
	for _, block := range r.blocks {
		snapshot := make([]*Operation, len(block.ops))
		copy(snapshot, block.ops)
		for _, op := range snapshot {
			if op.Walk(visit) == Interrupt {
				return Interrupt
			}
		}
	}
	return Advance
}
