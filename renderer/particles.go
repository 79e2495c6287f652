package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/streamflow/streamline"
)

// ParticleRenderer draws every particle as a sprite quad in a single mesh
// draw. The vertex stage reads positions straight from the state texture.
type ParticleRenderer struct {
	program  *program
	sprite   rl.Texture2D
	material rl.Material

	mesh     rl.Mesh
	hasMesh  bool
	vertices []float32
	texcoord []float32

	numParticles  int
	width, height int
	size          float64
}

// quadCorners are two triangles covering [-1, 1]².
var quadCorners = [6][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, -1}, {1, 1}, {-1, 1}}

func newParticleRenderer(prog *program, sprite rl.Texture2D, numParticles, width, height int) *ParticleRenderer {
	r := &ParticleRenderer{
		program:      prog,
		sprite:       sprite,
		numParticles: numParticles,
		width:        width,
		height:       height,
	}
	r.material = rl.LoadMaterialDefault()
	r.material.Shader = prog.shader
	rl.SetMaterialTexture(&r.material, rl.MapAlbedo, sprite)
	r.buildMesh()
	return r
}

// buildMesh creates six vertices per particle. The texture coordinate holds
// the particle's texel in the square state texture.
func (r *ParticleRenderer) buildMesh() {
	r.unloadMesh()

	side := streamline.TextureSide(r.numParticles)
	n := r.numParticles * len(quadCorners)
	r.vertices = make([]float32, n*3)
	r.texcoord = make([]float32, n*2)
	for i := 0; i < r.numParticles; i++ {
		tx, ty := float32(i%side), float32(i/side)
		for k, c := range quadCorners {
			v := i*len(quadCorners) + k
			r.vertices[v*3] = c[0]
			r.vertices[v*3+1] = c[1]
			r.texcoord[v*2] = tx
			r.texcoord[v*2+1] = ty
		}
	}

	r.mesh = rl.Mesh{
		VertexCount:   int32(n),
		TriangleCount: int32(n / 3),
		Vertices:      &r.vertices[0],
		Texcoords:     &r.texcoord[0],
	}
	rl.UploadMesh(&r.mesh, false)
	r.hasMesh = true
}

func (r *ParticleRenderer) unloadMesh() {
	if r.hasMesh {
		rl.UnloadMesh(&r.mesh)
		r.hasMesh = false
	}
}

func (r *ParticleRenderer) SetDimensions(width, height int) { r.width, r.height = width, height }

// SetNumParticles rebuilds the mesh for a new count.
func (r *ParticleRenderer) SetNumParticles(n int) {
	if n == r.numParticles {
		return
	}
	r.numParticles = n
	r.buildMesh()
}

func (r *ParticleRenderer) SetParticleSize(pixels float64) { r.size = pixels }

// SetParticleColor sets the diffuse colour the fragment stage tints with.
func (r *ParticleRenderer) SetParticleColor(c color.NRGBA) {
	r.material.GetMap(rl.MapAlbedo).Color = color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Render draws the sprites additively into dst.
func (r *ParticleRenderer) Render(pos streamline.Positions, dst streamline.Trail) {
	out := dst.(*Trail)
	rl.SetMaterialTexture(&r.material, rl.MapSpecular, pos.(rl.Texture2D))

	rl.BeginTextureMode(out.target)
	rl.DisableBackfaceCulling()
	withAdditiveBlending(func() {
		// Pixels to clip units.
		r.program.setVec2("spriteSize",
			float32(2*r.size/float64(r.width)),
			float32(2*r.size/float64(r.height)))
		rl.DrawMesh(r.mesh, r.material, rl.MatrixIdentity())
	})
	rl.EnableBackfaceCulling()
	rl.EndTextureMode()
}

// Unload releases the mesh and material. The shader and sprite texture belong
// to the backend, so they are detached before the material is freed.
func (r *ParticleRenderer) Unload() {
	r.unloadMesh()
	rl.SetMaterialTexture(&r.material, rl.MapAlbedo, rl.Texture2D{})
	rl.SetMaterialTexture(&r.material, rl.MapSpecular, rl.Texture2D{})
	r.material.Shader = rl.Shader{ID: rl.GetShaderIdDefault()}
	rl.UnloadMaterial(r.material)
}
