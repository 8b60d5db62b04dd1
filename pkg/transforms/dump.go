package transforms

import (
	"k8s.io/klog/v2"

	"github.com/gomlx/go-mlir/pkg/mlir"
)

// dumpFunc logs the rendered function under the given tag at verbosity 1.
// Passes call it before and after running, so `-v=1` shows the IR around
// every pass of a pipeline.
func dumpFunc(tag string, fn *mlir.Func) {
	if !klog.V(1).Enabled() {
		return
	}
	klog.Infof("%s:\n%s", tag, fn)
}
