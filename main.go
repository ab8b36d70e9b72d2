/*
Demo application for the vortex compute runtime: runs the hardsigmoid
kernel over the luminance of an image and writes the result as PNG.
Works on the Vulkan driver when a device is present and falls back to
the CPU reference driver otherwise.
*/
package main

import (
	"flag"
	"image"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	xdraw "golang.org/x/image/draw"

	"github.com/spaghettifunk/vortex/engine/compute"
	"github.com/spaghettifunk/vortex/engine/compute/driver"

	// Drivers register themselves; blank imports link them in.
	_ "github.com/spaghettifunk/vortex/engine/compute/driver/software"
	_ "github.com/spaghettifunk/vortex/engine/compute/driver/vulkan"

	"github.com/spaghettifunk/vortex/engine/config"
	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/kernels"
)

func main() {
	cfgPath := flag.String("config", "", "path to a TOML config file")
	inPath := flag.String("in", "", "input PNG; a gradient is generated when omitted")
	outPath := flag.String("out", "out.png", "output PNG")
	size := flag.Int("size", 256, "processing edge length in pixels")
	watch := flag.Bool("watch", false, "watch the kernel directory for recompiled binaries")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			core.LogFatal("%s", err.Error())
		}
		cfg = loaded
	}

	ctx, err := compute.New(compute.Options{Config: cfg})
	if err != nil {
		core.LogFatal("creating compute context: %s", err.Error())
	}
	defer ctx.Destroy()

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		core.LogInfo("interrupted, shutting down")
		ctx.Destroy()
		os.Exit(1)
	}()

	type flushListener struct{}
	core.EventRegister(core.EVENT_CODE_CONTEXT_FLUSHED, &flushListener{},
		func(code core.SystemEventCode, sender, inst interface{}, data core.EventContext) bool {
			core.LogDebug("flush #%d took %.3f ms", data.Data.U64[0], data.Data.F64[0])
			return false
		})

	if *watch {
		watcher, err := kernels.NewWatcher(ctx.Registry(), cfg.KernelDir)
		if err != nil {
			core.LogWarn("kernel watcher disabled: %s", err.Error())
		} else {
			defer watcher.Close()
		}
	}

	src := loadOrGenerate(*inPath, *size)
	out, err := process(ctx, src)
	if err != nil {
		core.LogFatal("processing image: %s", err.Error())
	}

	f, err := os.Create(*outPath)
	if err != nil {
		core.LogFatal("creating %s: %s", *outPath, err.Error())
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		core.LogFatal("encoding %s: %s", *outPath, err.Error())
	}
	core.LogInfo("wrote %s (%dx%d)", *outPath, *size, *size)

	dispatches, submissions, flushes := core.MetricsCounts()
	core.LogInfo("%d dispatches, %d submissions, %d flushes", dispatches, submissions, flushes)
}

// loadOrGenerate returns a size x size grayscale image: the decoded and
// rescaled input when a path is given, a diagonal gradient otherwise.
func loadOrGenerate(path string, size int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, size, size))
	if path == "" {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				out.Pix[y*out.Stride+x] = uint8((x + y) * 255 / (2 * (size - 1)))
			}
		}
		return out
	}

	f, err := os.Open(path)
	if err != nil {
		core.LogFatal("opening %s: %s", path, err.Error())
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		core.LogFatal("decoding %s: %s", path, err.Error())
	}
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return out
}

// process maps each pixel's luminance to [-6, 6], runs hardsigmoid on
// the device and maps the saturated result back to [0, 255].
func process(ctx *compute.Context, img *image.Gray) (*image.Gray, error) {
	w := uint32(img.Rect.Dx())
	h := uint32(img.Rect.Dy())
	ext := []uint32{w, h, 1, 0}

	values := make([]float32, w*h)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			g := float32(img.Pix[int(y)*img.Stride+int(x)]) / 255.0
			values[y*w+x] = g*12.0 - 6.0
		}
	}

	ub, err := ctx.NewUniformBuffer(16)
	if err != nil {
		return nil, err
	}
	defer ub.Destroy()
	if err := ub.WriteUint32(ext); err != nil {
		return nil, err
	}

	data, err := ctx.NewStorageBuffer(uint64(len(values) * 4))
	if err != nil {
		return nil, err
	}
	defer data.Destroy()
	if err := data.WriteFloat32(values); err != nil {
		return nil, err
	}

	buf, err := ctx.Stream()
	if err != nil {
		return nil, err
	}
	sig := compute.Signature(driver.KindUniformBuffer, driver.KindStorageBuffer)
	err = ctx.Dispatch(buf, sig, compute.Kernel("hardsigmoid"),
		compute.Extent(w, h), compute.Extent3D{}, compute.Uint32Bytes(ext), ub, data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Flush(); err != nil {
		return nil, err
	}

	result, err := data.ReadFloat32(len(values))
	if err != nil {
		return nil, err
	}

	out := image.NewGray(img.Rect)
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			out.Pix[int(y)*out.Stride+int(x)] = uint8(result[y*w+x]*255.0 + 0.5)
		}
	}
	return out, nil
}
