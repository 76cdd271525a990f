package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// stageFileSchema is the structural contract for stage files. Definitions are
// closed, so unknown fields and type mismatches are rejected with field-level
// messages before the YAML is decoded into Go structs.
const stageFileSchema = `
#Stage: {
	name:         string
	description?: string
	script:       string
	cacheKey?:    string
	required?:    bool
	skipIfEmpty?: string
	skipIf?:      string
	args?: [...string]
}

#PostValidationStep: {
	name:         string
	description?: string
	script:       string
	args?: [...string]
}

#StageFile: {
	mode:         string
	total_steps?: int
	description?: string
	stages: [...#Stage]
	post_validation?: [...#PostValidationStep]
}
`

// validateSchema unifies the document with #StageFile and reports the first
// constraint violation.
func validateSchema(path string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(stageFileSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return err
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return err
	}
	def := schema.LookupPath(cue.ParsePath("#StageFile"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup schema definition: %w", err)
	}
	return def.Unify(doc).Validate(cue.Concrete(true))
}
