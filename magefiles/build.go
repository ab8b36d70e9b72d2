//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const (
	shaderDir = "engine/kernels/shaders"
	kernelDir = "kernels"
)

// Compiles every compute kernel under engine/kernels/shaders into
// SPIR-V binaries in the kernel directory. Requires glslc on PATH.
func (Build) Shaders() error {
	sources, err := filepath.Glob(filepath.Join(shaderDir, "*.comp"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(kernelDir, 0o755); err != nil {
		return err
	}
	for _, src := range sources {
		name := strings.TrimSuffix(filepath.Base(src), ".comp")
		out := filepath.Join(kernelDir, name+".spv")
		if _, err := executeCmd("glslc", withArgs("-fshader-stage=compute", src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the demo binary.
func (Build) Binary() error {
	fmt.Println("Build vortex...")
	if _, err := executeCmd("go", withArgs("build", "-o", "vortex", "."), withStream()); err != nil {
		return err
	}
	return nil
}
