// dumptree prints a persisted move tree: node and match counts plus the
// statistically best line with the boards rendered turn by turn.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/oxolearn/oxo/movetree"
	"github.com/oxolearn/oxo/store"
)

func main() {
	dataDir := flag.String("data-dir", "data", "Directory holding the persisted move trees")
	name := flag.String("tree", "global_x", "Tree name to dump (global_x or global_o)")
	maxDepth := flag.Int("max-depth", 0, "Truncate the printed line after this many moves (0 = full line)")
	flag.Parse()

	trees, err := store.NewTreeStore(*dataDir)
	if err != nil {
		log.Fatalf("tree store: %v", err)
	}
	if !trees.Exists(*name) {
		log.Fatalf("no tree named %q under %s", *name, *dataDir)
	}
	root, err := trees.Load(*name)
	if err != nil {
		log.Fatalf("load %q: %v", *name, err)
	}

	matches := uint64(0)
	for _, child := range root.Children() {
		matches += uint64(child.Wins) + uint64(child.Losses)
	}
	fmt.Printf("tree:    %s\n", *name)
	fmt.Printf("file:    %s\n", trees.Path(*name))
	fmt.Printf("nodes:   %d\n", root.CountNodes())
	fmt.Printf("decided: %d first-move results\n", matches)

	best := movetree.StatisticallyBest(root)
	if len(best.Path) == 0 {
		fmt.Println("\nno statistics recorded yet")
		os.Exit(0)
	}

	fmt.Printf("\nbest line, average win %.1f%%:\n", best.AverageWinPercent)
	for i, node := range best.Path {
		if *maxDepth > 0 && i >= *maxDepth {
			fmt.Printf("  ... %d more moves\n", len(best.Path)-i)
			break
		}
		fmt.Printf("\nmove %d: cell %d, %d/%d w/l (%.1f%%)\n",
			i+1, node.MoveIndex, node.Wins, node.Losses, node.WinPercent())
		printHash(node.Hash)
	}
}

// printHash renders a viewpoint-relative position as a 3x3 grid.
func printHash(h movetree.PerspectiveHash) {
	for row := 0; row < 3; row++ {
		fmt.Print("  ")
		for col := 0; col < 3; col++ {
			s, err := h.Get(row*3 + col)
			if err != nil {
				s = '?'
			}
			fmt.Printf("%c ", rune(s))
		}
		fmt.Println()
	}
}
