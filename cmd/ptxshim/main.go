package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ptxshim/internal/models"
	"ptxshim/pkg/arrayio"
	"ptxshim/pkg/config"
	"ptxshim/pkg/maskio"
	"ptxshim/pkg/phantom"
	"ptxshim/pkg/shim"
	"ptxshim/pkg/visualization"
)

func main() {
	// Parse command line arguments
	b1Path := flag.String("b1", "", "NumPy file with complex sensitivity maps (channel,y,x) or (slice,channel,y,x)")
	maskPath := flag.String("mask", "", "Target support mask: .npy array or DICOM magnitude image (optional)")
	method := flag.String("method", "lls", "Shim method: lls (linear least squares) or mls (magnitude least squares)")
	configPath := flag.String("config", "ptxshim.yaml", "YAML configuration file")
	outputName := flag.String("output", "weights.npy", "Output weight vector filename")
	usePhantom := flag.Bool("phantom", false, "Generate a synthetic birdcage phantom instead of loading -b1")
	channels := flag.Int("channels", 8, "Phantom transmit channel count")
	size := flag.Int("size", 64, "Phantom slice size in pixels")
	flag.Parse()

	// Validate inputs
	if *b1Path == "" && !*usePhantom {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mode, err := shim.ParseMode(cfg.Shim.Mode)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("================================")
	fmt.Println("PTXSHIM - STATIC RF SHIMMING FOR PARALLEL-TRANSMIT MRI")
	fmt.Println("================================")

	// Load or synthesize the sensitivity maps
	var maps []*models.SensitivityMap
	if *usePhantom {
		fmt.Printf("Generating %d-channel birdcage phantom (%dx%d)...\n", *channels, *size, *size)
		maps = []*models.SensitivityMap{phantom.Smooth(phantom.Birdcage(*channels, *size, *size, 1.0), 0.5)}
	} else {
		fmt.Printf("Loading sensitivity maps from: %s\n", *b1Path)
		maps, err = arrayio.ReadSensitivityMaps(*b1Path)
		if err != nil {
			log.Fatalf("Failed to load sensitivity maps: %v", err)
		}
	}
	width, height := maps[0].Width, maps[0].Height
	fmt.Printf("Loaded %d slice(s), %d channels, %dx%d pixels\n",
		len(maps), maps[0].Channels, width, height)

	// Build the target support mask
	mask, err := loadMask(*maskPath, *usePhantom, width, height, cfg.Shim.MaskThreshold)
	if err != nil {
		log.Fatalf("Failed to load mask: %v", err)
	}

	target := make([]float64, len(mask))
	for i, v := range mask {
		target[i] = v * cfg.Shim.TargetValue
	}

	// Baseline: quadrature excitation with unit weights on every channel
	quadrature := make([]complex128, maps[0].Channels)
	for i := range quadrature {
		quadrature[i] = 1
	}
	baselineFields, err := shim.Fields(maps, quadrature, shim.Joint)
	if err != nil {
		log.Fatalf("Failed to evaluate baseline fields: %v", err)
	}
	baseline := shim.Uniformity(baselineFields, mask)

	opts := shim.Options{
		Mode:            mode,
		Tolerance:       cfg.Solver.Tolerance,
		MaxIterations:   cfg.Solver.MaxIterations,
		InnerIterations: cfg.Solver.InnerIterations,
		InnerTolerance:  cfg.Solver.InnerTolerance,
		Workers:         cfg.Shim.Workers,
	}
	if cfg.Output.Verbose {
		opts.Progress = func(iteration int, residual float64) {
			fmt.Printf("  iteration %3d: residual %.6e\n", iteration, residual)
		}
	}

	// Run the solve
	fmt.Printf("Starting %s shim solve (%s mode)...\n", strings.ToUpper(*method), cfg.Shim.Mode)
	startTime := time.Now()

	var result *shim.Result
	switch *method {
	case "lls":
		complexTarget := make([]complex128, len(target))
		for i, v := range target {
			complexTarget[i] = complex(v, 0)
		}
		result, err = shim.SolveLLS(maps, complexTarget, opts)
	case "mls":
		result, err = shim.SolveMLS(maps, target, opts)
	default:
		log.Fatalf("Unknown method %q (must be lls or mls)", *method)
	}
	if err != nil {
		log.Fatalf("Shim solve failed: %v", err)
	}
	solveTime := time.Since(startTime)

	// Report results
	fmt.Printf("\nSolve completed in %.3f seconds\n", solveTime.Seconds())
	fmt.Printf("Final residual: %.6e\n", result.ResidualNorm)
	fmt.Printf("Converged: %v\n", result.Converged)
	if !result.Converged {
		fmt.Println("(iteration cap reached; result is the best iterate so far)")
	}

	fmt.Printf("\nField homogeneity over the target support:\n")
	fmt.Printf("==========================================\n")
	fmt.Printf("Quadrature baseline: mean %.4f, stddev %.4f, CV %.4f\n",
		baseline.Mean, baseline.StdDev, baseline.CV)
	fmt.Printf("Shimmed:             mean %.4f, stddev %.4f, CV %.4f\n",
		result.Homogeneity.Mean, result.Homogeneity.StdDev, result.Homogeneity.CV)

	// Save the weight vector
	if err := arrayio.WriteComplex(*outputName, result.Weights); err != nil {
		log.Fatalf("Failed to save weights: %v", err)
	}
	fmt.Printf("\nSolved weights saved to: %s\n", *outputName)

	// Save field magnitude maps if requested
	if cfg.Output.SaveFieldMaps {
		fields := make([][]complex128, len(result.Slices))
		for i, s := range result.Slices {
			fields[i] = s.Field
		}
		viewer, err := visualization.NewViewer(fields, width, height)
		if err != nil {
			log.Fatalf("Failed to create field viewer: %v", err)
		}
		dir := cfg.Output.FieldMapDir
		if err := viewer.SaveFieldMaps(dir, *method); err != nil {
			log.Printf("Warning: failed to save field maps: %v", err)
		} else {
			fmt.Printf("Field magnitude maps saved to: %s\n", dir)
		}
	}
}

// loadMask resolves the target support: a DICOM or .npy file when given,
// a disc for the synthetic phantom, or full coverage otherwise.
func loadMask(path string, usePhantom bool, width, height int, threshold float64) ([]float64, error) {
	if path == "" {
		if usePhantom {
			return phantom.DiscMask(width, height, 0.8), nil
		}
		mask := make([]float64, width*height)
		for i := range mask {
			mask[i] = 1
		}
		return mask, nil
	}

	var (
		mask []float64
		w, h int
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm", ".dicom":
		mask, w, h, err = maskio.FromDICOM(path, threshold)
	case ".npy":
		mask, w, h, err = maskio.FromNPY(path, threshold)
	default:
		return nil, fmt.Errorf("unsupported mask format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if w != width || h != height {
		return nil, fmt.Errorf("mask is %dx%d but sensitivity maps are %dx%d", w, h, width, height)
	}
	return mask, nil
}
