package codegen

import (
	"bufio"
	"fmt"
	"os"

	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/ir"
)

// WriteFile renders the stream into path. The file is closed on every path
// and removed again if anything went wrong, so no partial artifact survives.
func WriteFile(path string, stream *ir.Stream, cfg *config.Config) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file '%s': %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing output file '%s': %w", path, cerr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	w := bufio.NewWriter(f)
	if err = stream.Render(w, cfg); err != nil {
		return fmt.Errorf("writing '%s': %w", path, err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("writing '%s': %w", path, err)
	}
	return nil
}
