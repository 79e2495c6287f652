// Package renderer implements the streamline rendering components on the GPU
// with raylib. All functions must be called from the thread that owns the GL
// context.
package renderer

import (
	"embed"
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

//go:embed shaders/*
var shaderFS embed.FS

// program is a compiled shader with cached uniform locations.
type program struct {
	name   string
	shader rl.Shader
	locs   map[string]int32
}

// loadProgram compiles the named shader sources. An empty vertex name uses
// raylib's default vertex shader.
func loadProgram(vsName, fsName string) (*program, error) {
	var vs, fs string
	if vsName != "" {
		b, err := shaderFS.ReadFile("shaders/" + vsName)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", vsName, err)
		}
		vs = string(b)
	}
	b, err := shaderFS.ReadFile("shaders/" + fsName)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fsName, err)
	}
	fs = string(b)

	shader := rl.LoadShaderFromMemory(vs, fs)
	if !rl.IsShaderValid(shader) {
		return nil, fmt.Errorf("compiling %s: invalid shader", fsName)
	}
	return &program{name: fsName, shader: shader, locs: make(map[string]int32)}, nil
}

func (p *program) loc(name string) int32 {
	if l, ok := p.locs[name]; ok {
		return l
	}
	l := rl.GetShaderLocation(p.shader, name)
	p.locs[name] = l
	return l
}

func (p *program) setFloat(name string, v float32) {
	rl.SetShaderValue(p.shader, p.loc(name), []float32{v}, rl.ShaderUniformFloat)
}

func (p *program) setVec2(name string, x, y float32) {
	rl.SetShaderValue(p.shader, p.loc(name), []float32{x, y}, rl.ShaderUniformVec2)
}

func (p *program) setVec3(name string, x, y, z float32) {
	rl.SetShaderValue(p.shader, p.loc(name), []float32{x, y, z}, rl.ShaderUniformVec3)
}

func (p *program) setVec4(name string, v [4]float32) {
	rl.SetShaderValue(p.shader, p.loc(name), v[:], rl.ShaderUniformVec4)
}

// setTexture binds a sampler. Samplers are registered with the current
// batch, so call it between BeginShaderMode and the draw.
func (p *program) setTexture(name string, tex rl.Texture2D) {
	rl.SetShaderValueTexture(p.shader, p.loc(name), tex)
}

func (p *program) unload() {
	rl.UnloadShader(p.shader)
}

// withoutBlending runs draw with source values written unchanged, including
// alpha.
func withoutBlending(draw func()) {
	rl.SetBlendFactors(rl.One, rl.Zero, rl.FuncAdd)
	rl.BeginBlendMode(rl.BlendCustom)
	draw()
	rl.EndBlendMode()
}

// withAdditiveBlending runs draw with saturating additive blending.
func withAdditiveBlending(draw func()) {
	rl.SetBlendFactors(rl.One, rl.One, rl.FuncAdd)
	rl.BeginBlendMode(rl.BlendCustom)
	draw()
	rl.EndBlendMode()
}
