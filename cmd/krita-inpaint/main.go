package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"math"
	"os"
	"time"

	"github.com/nfnt/resize"

	"github.com/DemetryRomanowski/krita/pkg/config"
	"github.com/DemetryRomanowski/krita/pkg/inpaint"
	"github.com/DemetryRomanowski/krita/pkg/surface"
	"github.com/DemetryRomanowski/krita/pkg/visualization"
)

// loadImage decodes a PNG or JPEG file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func main() {
	// Parse command line arguments
	imagePath := flag.String("image", "", "Input image (PNG or JPEG)")
	maskPath := flag.String("mask", "", "Mask image; pixels darker than 128 mark the hole to fill")
	outputPath := flag.String("output", "output.png", "Output PNG filename")
	radius := flag.Int("radius", 2, "Patch half-width; patches cover (2*radius+1)^2 pixels")
	seed := flag.Uint64("seed", 0, "Random seed used with -deterministic")
	deterministic := flag.Bool("deterministic", false, "Seed the random source for reproducible output")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	prescale := flag.Int("prescale", 0, "Downscale inputs wider than this before inpainting (0 = off)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save pyramid levels during processing")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	flag.Parse()

	// Validate inputs
	if *imagePath == "" || *maskPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Start from the config file when given, then let flags override
	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "radius":
			cfg.Inpaint.Radius = *radius
		case "seed":
			cfg.Inpaint.Seed = *seed
		case "deterministic":
			cfg.Inpaint.Deterministic = *deterministic
		case "prescale":
			cfg.Input.PrescaleWidth = *prescale
		case "save-intermediary":
			cfg.Output.SaveIntermediaryResults = *saveIntermediary
		case "intermediary-dir":
			cfg.Output.IntermediaryDir = *intermediaryDir
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	say := func(format string, args ...interface{}) {
		if cfg.Output.Verbose {
			fmt.Printf(format+"\n", args...)
		}
	}

	say("================================")
	say("PATCHMATCH IMAGE INPAINTING")
	say("Based on Barnes et al., SIGGRAPH 2009 and Wexler et al., Space-Time Video Completion")
	say("================================")

	// Step 1: Load the input image and mask
	say("Step 1: Loading image and mask...")
	img, err := loadImage(*imagePath)
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}
	maskImg, err := loadImage(*maskPath)
	if err != nil {
		log.Fatalf("Failed to load mask: %v", err)
	}

	// Step 2: Optionally downscale oversized inputs. The mask uses
	// nearest-neighbour sampling so hole membership stays binary.
	if w := cfg.Input.PrescaleWidth; w > 0 && img.Bounds().Dx() > w {
		say("Step 2: Prescaling inputs to width %d...", w)
		img = resize.Resize(uint(w), 0, img, resize.Lanczos3)
		maskImg = resize.Resize(uint(w), 0, maskImg, resize.NearestNeighbor)
	}

	imgSurface, err := surface.FromImage(img)
	if err != nil {
		log.Fatalf("Failed to adapt image: %v", err)
	}
	maskSurface, err := surface.FromGray(maskImg)
	if err != nil {
		log.Fatalf("Failed to adapt mask: %v", err)
	}

	// Step 3: Optionally dump the pyramid the engine will work on
	if cfg.Output.SaveIntermediaryResults {
		say("Step 3: Saving pyramid levels to %s...", cfg.Output.IntermediaryDir)
		masked, err := inpaint.NewMaskedImage(imgSurface, maskSurface)
		if err != nil {
			log.Fatalf("Failed to build masked image: %v", err)
		}
		pyramid := inpaint.BuildPyramid(masked, cfg.Inpaint.Radius)
		if err := visualization.SavePyramid(pyramid, cfg.Output.IntermediaryDir); err != nil {
			log.Printf("Warning: Failed to save pyramid levels: %v", err)
		}
	}

	// Step 4: Run the inpainting pipeline
	say("Step 4: Inpainting...")
	params := &inpaint.Params{
		Radius:        cfg.Inpaint.Radius,
		Deterministic: cfg.Inpaint.Deterministic,
		Seed:          cfg.Inpaint.Seed,
	}
	inpainter, err := inpaint.NewInpainter(params)
	if err != nil {
		log.Fatalf("Failed to create inpainter: %v", err)
	}

	startTime := time.Now()
	result, err := inpainter.Patch(imgSurface, maskSurface)
	if err != nil {
		log.Fatalf("Inpainting failed: %v", err)
	}
	processingTime := time.Since(startTime)

	// Step 5: Save the result
	say("Step 5: Saving result...")
	if err := visualization.SavePNG(surface.ToImage(result), *outputPath); err != nil {
		log.Fatalf("Failed to save output: %v", err)
	}

	fmt.Printf("\nInpainting completed successfully in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Output image saved to: %s\n", *outputPath)

	// Step 6: Report reconstruction quality over the known region
	if cfg.Output.ComputeMetrics {
		metrics, err := inpaint.ComputeMetrics(imgSurface, result, maskSurface)
		if err != nil {
			log.Fatalf("Failed to compute metrics: %v", err)
		}

		fmt.Printf("\nKnown-region reconstruction metrics:\n")
		fmt.Printf("====================================\n")
		fmt.Printf("Known pixels: %d\n", metrics.KnownPixels)
		fmt.Printf("Root Mean Square Error (RMSE): %.4f\n", metrics.RMSE)
		if math.IsInf(metrics.PSNR, 1) {
			fmt.Printf("Peak Signal-to-Noise Ratio (PSNR): inf\n")
		} else {
			fmt.Printf("Peak Signal-to-Noise Ratio (PSNR): %.2f dB\n", metrics.PSNR)
		}
		fmt.Printf("Pearson Correlation: %.4f\n", metrics.Correlation)
		fmt.Printf("Mean Absolute Error: %.4f\n", metrics.MeanAbsError)
	}
}
