package main

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avasile/scrollsnap/internal/session"
	"github.com/avasile/scrollsnap/internal/stitch"
)

var stitchCmd = &cobra.Command{
	Use:   "stitch TILES_DIR",
	Short: "Stitch an existing directory of captured tiles",
	Long:  "Composes tile_0001.png .. tile_NNNN.png from a previous capture into one long image. Partial tile sets from interrupted runs work too.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStitch,
}

var (
	stitchOut          string
	stitchOverlap      int
	stitchStickyTop    int
	stitchStickyBottom int
	stitchScaleWidth   int
)

func init() {
	f := stitchCmd.Flags()
	f.StringVarP(&stitchOut, "out", "o", "", "Output path (default: stitched.png next to the tiles)")
	f.IntVar(&stitchOverlap, "tile-overlap", 80, "Overlap pixels the tiles were captured with")
	f.IntVar(&stitchStickyTop, "sticky-top", 0, "Pixels to crop from tile tops (tiles 2..N)")
	f.IntVar(&stitchStickyBottom, "sticky-bottom", 0, "Pixels to crop from tile bottoms (tiles 2..N-1)")
	f.IntVar(&stitchScaleWidth, "scale-to-width", 0, "Downscale the result to this width (0 = keep)")

	rootCmd.AddCommand(stitchCmd)
}

func runStitch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	paths, err := session.ListTiles(dir)
	if err != nil {
		return err
	}
	fmt.Printf("Stitching %d tiles from %s\n", len(paths), dir)

	tiles, err := stitch.DecodeTiles(paths)
	if err != nil {
		return err
	}
	spec := stitch.Spec{
		Overlap:      stitchOverlap,
		StickyTop:    stitchStickyTop,
		StickyBottom: stitchStickyBottom,
	}

	heights := make([]int, len(tiles))
	for i, t := range tiles {
		heights[i] = t.Bounds().Dy()
	}
	if total, err := stitch.Height(heights, spec); err == nil {
		if warn := stitch.MemoryWarning(tiles[0].Bounds().Dx(), total); warn != "" {
			log.Printf("[warn] %s", warn)
		}
	}

	img, err := stitch.Compose(tiles, spec)
	if err != nil {
		return err
	}
	result := stitch.NormalizeWidth(img, stitchScaleWidth)

	outPath := stitchOut
	if outPath == "" {
		// Tiles live in <page-dir>/tiles/, the stitched image next to it.
		outPath = filepath.Join(filepath.Dir(dir), "stitched.png")
	}
	if err := stitch.WritePNG(outPath, result); err != nil {
		return err
	}
	b := result.Bounds()
	fmt.Printf("[ok] %dx%d -> %s\n", b.Dx(), b.Dy(), outPath)
	return nil
}
