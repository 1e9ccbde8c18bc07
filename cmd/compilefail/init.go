package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/tools/txtar"
)

//go:embed scaffold.txtar
var scaffold []byte

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a starter compilefail.yaml and an example case",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	written, err := writeArchive(txtar.Parse(scaffold), dir, initForce)
	for _, name := range written {
		fmt.Printf("  + %s\n", name)
	}
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if len(written) == 0 {
		fmt.Println("  nothing to do; all files exist (use --force to overwrite)")
	}
	return nil
}

// writeArchive materialises every file of a into dir, skipping files that
// already exist unless force is set. It returns the paths it wrote.
func writeArchive(a *txtar.Archive, dir string, force bool) ([]string, error) {
	var written []string
	for _, f := range a.Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !force {
			if _, err := os.Stat(path); err == nil {
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return written, fmt.Errorf("stat %s: %w", path, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}
