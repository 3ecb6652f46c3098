package patch

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/dspgridgo/internal/ctxlog"
	"github.com/vk/dspgridgo/internal/fsutil"
	"github.com/vk/dspgridgo/internal/sched"
)

// fileRoot decodes all top-level blocks of a patch file.
type fileRoot struct {
	Patches []*patchBlock `hcl:"patch,block"`
	Nodes   []*nodeBlock  `hcl:"node,block"`
	Remain  hcl.Body      `hcl:",remain"`
}

type patchBlock struct {
	Threads     *int    `hcl:"threads,optional"`
	Strategy    *string `hcl:"strategy,optional"`
	Parallelism *bool   `hcl:"parallelism,optional"`
}

type nodeBlock struct {
	Name   string         `hcl:",label"`
	After  []string       `hcl:"after,optional"`
	WorkUS hcl.Expression `hcl:"work_us,optional"`
	Gain   hcl.Expression `hcl:"gain,optional"`
}

// Load parses every .hcl file reachable from the given paths into one merged
// Model. Each path may be a single file or a directory searched recursively.
func Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Patch loader started.", "path_count", len(paths))

	files, err := findPatchFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl patch files found in %v", paths)
	}
	logger.Debug("Discovered patch files.", "count", len(files))

	model := &Model{}
	seenNodes := make(map[string]*NodeDef)
	parser := hclparse.NewParser()
	patchBlocks := 0

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse patch file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode patch file %s: %w", file, diags)
		}

		for _, block := range root.Patches {
			patchBlocks++
			if patchBlocks > 1 {
				return nil, fmt.Errorf("duplicate patch block in %s: only one patch block is allowed across all files", file)
			}
			if err := translateSettings(block, &model.Settings); err != nil {
				return nil, err
			}
		}

		for _, block := range root.Nodes {
			def, diags := translateNode(block)
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid node %q in %s: %w", block.Name, file, diags)
			}
			if _, ok := seenNodes[def.Name]; ok {
				return nil, fmt.Errorf("duplicate node name %q in %s", def.Name, file)
			}
			seenNodes[def.Name] = def
			model.Nodes = append(model.Nodes, def)
		}
	}

	logger.Debug("Patch loading complete.", "nodes", len(model.Nodes))
	return model, nil
}

// findPatchFiles resolves each path to a list of .hcl files. A path naming a
// regular file is taken verbatim; directories are searched recursively.
func findPatchFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access patch path %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to scan patch directory %s: %w", path, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

func translateSettings(block *patchBlock, out *Settings) error {
	if block.Threads != nil {
		threads := *block.Threads
		if threads < 1 || threads > sched.MaxThreadCount {
			return fmt.Errorf("patch threads must be in [1, %d], got %d", sched.MaxThreadCount, threads)
		}
		out.Threads = threads
	}
	if block.Strategy != nil {
		if _, err := sched.ParseStrategy(*block.Strategy); err != nil {
			return err
		}
		out.Strategy = *block.Strategy
	}
	out.Parallelism = block.Parallelism
	return nil
}

func translateNode(block *nodeBlock) (*NodeDef, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	def := &NodeDef{
		Name:  block.Name,
		After: block.After,
		Gain:  1.0,
	}

	// gohcl fills an absent optional expression field with a static null
	// expression instead of leaving it nil, so an attribute counts as set
	// only when its value is non-null.
	if raw, _ := block.WorkUS.Value(nil); !raw.IsNull() {
		value, moreDiags := decodeNumber(block.WorkUS, "work_us")
		diags = append(diags, moreDiags...)
		if !moreDiags.HasErrors() {
			if value < 0 {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid work_us value",
					Detail:   fmt.Sprintf("work_us must not be negative, got %g.", value),
					Subject:  block.WorkUS.Range().Ptr(),
				})
			} else {
				def.WorkMicros = value
			}
		}
	}

	if raw, _ := block.Gain.Value(nil); !raw.IsNull() {
		value, moreDiags := decodeNumber(block.Gain, "gain")
		diags = append(diags, moreDiags...)
		if !moreDiags.HasErrors() {
			def.Gain = value
		}
	}

	return def, diags
}

// decodeNumber evaluates a constant attribute expression and converts it to a
// float through cty, so type mismatches surface as proper diagnostics rather
// than decode panics.
func decodeNumber(expr hcl.Expression, name string) (float64, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	value, moreDiags := expr.Value(nil)
	diags = append(diags, moreDiags...)
	if diags.HasErrors() {
		return 0, diags
	}

	converted, err := convert.Convert(value, cty.Number)
	if err != nil || converted.IsNull() {
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("Invalid %s attribute", name),
			Detail:   fmt.Sprintf("The %s attribute must be a number.", name),
			Subject:  expr.Range().Ptr(),
		})
		return 0, diags
	}

	result, _ := converted.AsBigFloat().Float64()
	return result, diags
}
