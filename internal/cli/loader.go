package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tokenflow/internal/compiler"
	"github.com/roach88/tokenflow/internal/ir"
)

// LoadResult contains the process graphs loaded from CUE files.
type LoadResult struct {
	Graphs    []*ir.ProcessGraph
	FileCount int // Number of CUE files read
}

// LoadError represents an error that occurred while loading process files.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProcesses loads every CUE file or directory in paths. It stops at the
// first path that cannot be loaded.
func LoadProcesses(paths []string) (*LoadResult, error) {
	result := &LoadResult{}
	for _, path := range paths {
		loaded, err := compiler.Load(path)
		if err != nil {
			return nil, convertLoadError(path, err)
		}
		result.Graphs = append(result.Graphs, loaded.Graphs...)
		result.FileCount += loaded.FileCount
	}
	return result, nil
}

// convertLoadError maps a compiler error to a LoadError with position info.
func convertLoadError(path string, err error) *LoadError {
	var compileErr *compiler.CompileError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	case errors.As(err, &compileErr):
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	case strings.Contains(err.Error(), "no CUE files"):
		return &LoadError{Code: ErrCodeNoFiles, Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %v", path, err)}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeLogFailed   = "E007" // Record log error

	// Compile errors
	ErrCodeNoProcess   = "E101" // No process definitions
	ErrCodeProcessID   = "E102" // Missing process id
	ErrCodeNodes       = "E103" // Invalid node
	ErrCodeFlows       = "E104" // Invalid sequence flow
	ErrCodeCUESyntax   = "E105" // CUE evaluation error
	ErrCodeRejected    = "E300" // Command rejected by the engine
	ErrCodeBadArgument = "E301" // Invalid command argument
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "process":
		return ErrCodeNoProcess
	case field == "id":
		return ErrCodeProcessID
	case field == "cue":
		return ErrCodeCUESyntax
	case field == "nodes" || strings.HasPrefix(field, "nodes."):
		return ErrCodeNodes
	case field == "flows" || strings.HasPrefix(field, "flows["):
		return ErrCodeFlows
	default:
		return ErrCodeGeneric
	}
}
