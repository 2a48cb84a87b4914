package hclparams

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"stagehand/internal/ctxlog"
	"stagehand/internal/params"
)

// fileRoot decodes the top-level blocks of a params file.
type fileRoot struct {
	Params []*paramsBlock `hcl:"params,block"`
	Remain hcl.Body       `hcl:",remain"`
}

type paramsBlock struct {
	Name      string    `hcl:"name,label"`
	Overwrite *bool     `hcl:"overwrite,optional"`
	Ignore    []string  `hcl:"ignore,optional"`
	Values    cty.Value `hcl:"values,optional"`
}

// Load parses every params block found under the given paths and returns the
// resulting parameter sets in file-then-declaration order. Directory paths
// are walked for .hcl files; nonexistent paths are skipped.
func Load(ctx context.Context, paths ...string) ([]*params.ParameterSet, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered params files.", "count", len(files))

	parser := hclparse.NewParser()
	var sets []*params.ParameterSet
	seen := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing params file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("decoding params file %s: %w", file, diags)
		}

		for _, block := range root.Params {
			if prev, dup := seen[block.Name]; dup {
				return nil, fmt.Errorf("params %q declared in both %s and %s", block.Name, prev, file)
			}
			seen[block.Name] = file

			ps, err := translate(block)
			if err != nil {
				return nil, fmt.Errorf("params %q in %s: %w", block.Name, file, err)
			}
			sets = append(sets, ps)
		}
	}

	logger.Debug("Params loading complete.", "param_sets", len(sets))
	return sets, nil
}

// translate builds one parameter set from a decoded block.
func translate(block *paramsBlock) (*params.ParameterSet, error) {
	ps := params.New(block.Name)
	if block.Overwrite != nil {
		ps.Overwrite = *block.Overwrite
	}

	if block.Values != cty.NilVal && !block.Values.IsNull() {
		if !block.Values.Type().IsObjectType() && !block.Values.Type().IsMapType() {
			return nil, fmt.Errorf("values must be an object, got %s", block.Values.Type().FriendlyName())
		}
		native, err := ctyToNative(block.Values)
		if err != nil {
			return nil, err
		}
		for field, value := range native.(map[string]any) {
			ps.Set(field, value)
		}
	}
	for _, field := range block.Ignore {
		ps.Ignore(field)
	}
	return ps, nil
}

// findHCLFiles flattens the given paths into a deduplicated list of .hcl
// files, walking directories recursively.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, dup := seen[p]; !dup {
			files = append(files, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			if filepath.Ext(path) == ".hcl" {
				add(path)
			}
			continue
		}
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
