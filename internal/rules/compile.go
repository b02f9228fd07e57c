package rules

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// Compile reads connector rules from a CUE value of the form:
//
//	connector: "sftp-connector": {
//		params: ["hostname", "operation"]
//		database: false
//		external: true
//	}
//
// A value without a connector field compiles to an empty table.
func Compile(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	table := NewTable()

	connectors := v.LookupPath(cue.ParsePath("connector"))
	if !connectors.Exists() {
		return table, nil
	}

	iter, err := connectors.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		rule, err := compileRule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		table.rules[rule.Connector] = rule
	}

	return table, nil
}

func compileRule(name string, v cue.Value) (Rule, error) {
	rule := Rule{Connector: name}

	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return rule, &CompileError{
			Field:   "connector." + name + ".params",
			Message: "params is required",
			Pos:     v.Pos(),
		}
	}

	list, err := paramsVal.List()
	if err != nil {
		return rule, formatCUEError(err)
	}
	for list.Next() {
		p, err := list.Value().String()
		if err != nil {
			return rule, &CompileError{
				Field:   "connector." + name + ".params",
				Message: "params must be a list of strings",
				Pos:     list.Value().Pos(),
			}
		}
		if p == "" {
			return rule, &CompileError{
				Field:   "connector." + name + ".params",
				Message: "params entries must not be empty",
				Pos:     list.Value().Pos(),
			}
		}
		rule.Params = append(rule.Params, p)
	}
	if len(rule.Params) == 0 {
		return rule, &CompileError{
			Field:   "connector." + name + ".params",
			Message: "at least one param path is required",
			Pos:     paramsVal.Pos(),
		}
	}

	if rule.Database, err = optionalBool(v, "database"); err != nil {
		return rule, err
	}
	if rule.External, err = optionalBool(v, "external"); err != nil {
		return rule, err
	}

	return rule, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// LoadDir compiles every CUE file in dir as one instance.
func LoadDir(dir string) (*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("rules directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rules directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scanning rules directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", err)
	}

	value := ctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return Compile(value)
}

// CompileError is a rule compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
