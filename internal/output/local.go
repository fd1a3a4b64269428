package output

import (
	"context"
	"os"

	"github.com/recipescrape/recipescrape/pkg/utils"
)

// LocalSink writes outputs as files under a directory.
type LocalSink struct {
	dir    string
	logger *utils.StructuredLogger
}

// NewLocalSink creates a sink rooted at dir. The directory is created on first write.
func NewLocalSink(dir string, logger *utils.StructuredLogger) *LocalSink {
	if dir == "" {
		dir = "./outputs"
	}
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &LocalSink{dir: dir, logger: logger.WithComponent("output")}
}

// Dir returns the output directory.
func (l *LocalSink) Dir() string {
	return l.dir
}

func (l *LocalSink) Write(ctx context.Context, name string, data []byte) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return writeError(err, name, l.dir)
	}

	path, err := utils.SecureJoin(l.dir, name)
	if err != nil {
		return writeError(err, name, l.dir)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return writeError(err, name, l.dir)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return writeError(err, name, l.dir)
	}

	l.logger.Debug("Output written", map[string]interface{}{"path": path, "bytes": len(data)})
	return nil
}
