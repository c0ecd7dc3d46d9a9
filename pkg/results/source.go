package results

import (
	"fmt"
	"os"

	"github.com/jupierce/source-coverage/pkg/analysis"
	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
)

// NoSourceError is returned when a measured file's source cannot be read.
type NoSourceError struct {
	File files.FileKey
	Err  error
}

func (e *NoSourceError) Error() string {
	return fmt.Sprintf("No source for code: '%s'.", e.File)
}

func (e *NoSourceError) Unwrap() error { return e.Err }

// SourceLoader reads the current source text of a measured file.
type SourceLoader interface {
	Load(file files.FileKey) ([]byte, error)
}

// FSLoader reads sources from the local filesystem.
type FSLoader struct{}

// Load implements SourceLoader.
func (FSLoader) Load(file files.FileKey) ([]byte, error) {
	return os.ReadFile(string(file))
}

// AnalyzeFile loads and analyzes file and computes its coverage. It fails
// with a *NoSourceError when the source is unavailable and with the
// analyzer's *analysis.ParseError when the source does not parse.
func AnalyzeFile(file files.FileKey, source SourceLoader, analyzer analysis.Analyzer, store *data.Store) (*FileCoverage, error) {
	src, err := source.Load(file)
	if err != nil {
		return nil, &NoSourceError{File: file, Err: err}
	}
	static, err := analyzer.Analyze(src, string(file))
	if err != nil {
		return nil, err
	}
	return Analyze(file, static, store), nil
}
