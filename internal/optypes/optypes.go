// Package optypes enumerates the operation kinds of the device IR.
//
// The set is closed: transforms switch over OpType and rely on the compiler
// to check exhaustiveness of the cases they care about, instead of matching
// on free-form operation name strings.
package optypes

import "fmt"

// OpType identifies the kind of an operation.
type OpType int

const (
	Invalid OpType = iota

	// Plain tensor ops.
	Const
	Identity
	AddV2
	Mul
	Shape
	ReadVariable
	AssignVariable
	VariableShape

	// Region-carrying control flow.
	IfRegion

	// Replication scaffolding, removed by cluster formation.
	ReplicateMetadata
	ReplicatedInput
	ReplicatedOutput

	// Device constructs.
	Launch
	Replicate

	// Terminator closing the body of Launch, Replicate and IfRegion regions,
	// and of functions.
	Return
)

// names indexed by OpType, using the dialect-qualified spelling that the
// text form prints.
var names = [...]string{
	Invalid:           "INVALID",
	Const:             "tf.Const",
	Identity:          "tf.Identity",
	AddV2:             "tf.AddV2",
	Mul:               "tf.Mul",
	Shape:             "tf.Shape",
	ReadVariable:      "tf.ReadVariableOp",
	AssignVariable:    "tf.AssignVariableOp",
	VariableShape:     "tf.VariableShape",
	IfRegion:          "tf.IfRegion",
	ReplicateMetadata: "tf.ReplicateMetadata",
	ReplicatedInput:   "tf.ReplicatedInput",
	ReplicatedOutput:  "tf.ReplicatedOutput",
	Launch:            "tf_device.launch",
	Replicate:         "tf_device.replicate",
	Return:            "tf_device.return",
}

// String implements fmt.Stringer, returning the dialect-qualified name,
// e.g. "tf.Shape" or "tf_device.replicate".
func (op OpType) String() string {
	if op < 0 || int(op) >= len(names) {
		return fmt.Sprintf("OpType(%d)", int(op))
	}
	return names[op]
}

// IsTerminator reports whether the op kind closes a block. Terminators are
// never subject to code motion.
func (op OpType) IsTerminator() bool {
	return op == Return
}
