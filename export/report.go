package export

import (
	"fmt"
	"strings"

	"github.com/binzume/sceneexport/logger"
	"go.uber.org/zap"
)

// Report collects per-object outcomes of one export.
type Report struct {
	Exported int
	Failed   []string
	Errors   []error
}

func (r *Report) Success(name string) {
	r.Exported++
}

func (r *Report) Fail(name string, err error) {
	logger.Log.Warn("failed to encode object", zap.String("object", name), zap.Error(err))
	r.Failed = append(r.Failed, name)
	r.Errors = append(r.Errors, err)
}

func (r *Report) Warnings() int {
	return len(r.Failed)
}

func (r *Report) String() string {
	if len(r.Failed) == 0 {
		return fmt.Sprintf("exported %d objects", r.Exported)
	}
	return fmt.Sprintf("exported with %d warnings (failed: %s)", len(r.Failed), strings.Join(r.Failed, ", "))
}
