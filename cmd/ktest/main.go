// ktest compiles every program matching a glob with kpc and compares the
// emitted P-code and diagnostics against golden files
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type Execution struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// Golden is what a golden file records for one program
type Golden struct {
	Hash   string    `json:"hash"`
	Args   []string  `json:"args,omitempty"`
	Result Execution `json:"result"`
}

type FileTestResult struct {
	File    string `json:"file"`
	Status  string `json:"status"` // PASS, FAIL, SKIP, ERROR, UPDATED
	Message string `json:"message,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

var (
	compilerPath = flag.String("compiler", "./kpc", "Path to the kpc binary under test.")
	compilerArgs = flag.String("args", "", "Extra arguments for kpc (space-separated).")
	testFiles    = flag.String("test-files", "tests/*.json", "Glob pattern(s) for programs to test (space-separated).")
	skipFiles    = flag.String("skip-files", "", "Files to skip (space-separated).")
	goldenDir    = flag.String("dir", "", "Directory holding golden files (defaults to each program's directory).")
	outputJSON   = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	update       = flag.Bool("update", false, "Write golden files from the current compiler output.")
	timeout      = flag.Duration("timeout", 5*time.Second, "Timeout for each compilation.")
	jobs         = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose      = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *jobs < 1 {
		*jobs = 1
	}
	if _, err := exec.LookPath(*compilerPath); err != nil {
		log.Fatalf("%s[ERROR]%s Compiler '%s' not found: %v\n", cRed, cNone, *compilerPath, err)
	}

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	results := runSuite(files)
	printSummary(results)
	if err := writeJSONReport(results); err != nil {
		log.Printf("%s[WARN]%s %v\n", cYellow, cNone, err)
	}
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			os.Exit(1)
		}
	}
}

func goldenPath(file string) string {
	name := "." + strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + ".golden.json"
	if *goldenDir != "" {
		return filepath.Join(*goldenDir, name)
	}
	return filepath.Join(filepath.Dir(file), name)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

type task struct {
	file string
	hash string
}

func runSuite(files []string) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				resultsChan <- testFile(t.file, t.hash)
			}
		}()
	}

	// Programs with identical content are compiled once
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		fileHash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if original, seen := seenHashes[fileHash]; seen {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)}
			continue
		}
		seenHashes[fileHash] = file
		tasks <- task{file: file, hash: fileHash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var all []*FileTestResult
	for r := range resultsChan {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })
	return all
}

func testFile(file, fileHash string) *FileTestResult {
	args := append(strings.Fields(*compilerArgs), "--dump", file)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	got := executeCommand(ctx, *compilerPath, args...)
	if *verbose {
		log.Printf("[%s] exit %d in %v\n", file, got.ExitCode, got.Duration)
	}
	if got.TimedOut {
		return &FileTestResult{File: file, Status: "FAIL", Message: fmt.Sprintf("Compilation timed out after %v", *timeout)}
	}

	golden := goldenPath(file)
	if *update {
		if err := writeGolden(golden, Golden{Hash: fileHash, Args: args, Result: got}); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
		}
		return &FileTestResult{File: file, Status: "UPDATED", Message: "Golden file written to " + golden}
	}

	data, err := os.ReadFile(golden)
	if errors.Is(err, os.ErrNotExist) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "No golden file; run with --update to create one"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", golden, err)}
	}
	var want Golden
	if err := json.Unmarshal(data, &want); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", golden, err)}
	}
	return compareResults(file, fileHash, want, got)
}

func compareResults(file, fileHash string, want Golden, got Execution) *FileTestResult {
	var diffs strings.Builder
	failed := false

	if want.Result.ExitCode != got.ExitCode {
		failed = true
		fmt.Fprintf(&diffs, "Exit code mismatch:\n  - Golden: %d\n  - Target: %d\n", want.Result.ExitCode, got.ExitCode)
	}
	if d := cmp.Diff(splitLines(want.Result.Stdout), splitLines(got.Stdout)); d != "" {
		failed = true
		fmt.Fprintf(&diffs, "P-code mismatch (-golden +target):\n%s", d)
	}
	if d := cmp.Diff(splitLines(want.Result.Stderr), splitLines(got.Stderr)); d != "" {
		failed = true
		fmt.Fprintf(&diffs, "Diagnostics mismatch (-golden +target):\n%s", d)
	}

	msg := "Output matches golden file"
	if want.Hash != "" && want.Hash != fileHash {
		msg += " (program changed since the golden file was written)"
	}
	if failed {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Output differs from golden file", Diff: diffs.String()}
	}
	return &FileTestResult{File: file, Status: "PASS", Message: msg}
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func writeGolden(path string, g Golden) error {
	g.Result.Duration = 0
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling golden data: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing golden file %s: %w", path, err)
	}
	return nil
}

// executeCommand runs a command with a timeout and captures its output
func executeCommand(ctx context.Context, command string, args ...string) Execution {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Execution{Stdout: stdout.String(), Stderr: stderr.String(), Duration: time.Since(start)}

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = -1
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		res.ExitCode = -2
		res.Stderr += "\nExecution error: " + err.Error()
	}
	return res
}

func expandGlobPatterns(patterns string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if strings.HasPrefix(filepath.Base(m), ".") || seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files, nil
}

func printSummary(results []*FileTestResult) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[r.Status]++
		color := cNone
		switch r.Status {
		case "PASS", "UPDATED":
			color = cGreen
		case "FAIL", "ERROR":
			color = cRed
		case "SKIP":
			color = cYellow
		}
		if r.Status == "PASS" && !*verbose {
			continue
		}
		fmt.Printf("%s[%s]%s %s: %s\n", color, r.Status, cNone, r.File, r.Message)
		if r.Diff != "" {
			fmt.Printf("%s%s%s\n", cCyan, r.Diff, cNone)
		}
	}
	fmt.Printf("\n%sSummary:%s %d passed, %d failed, %d errors, %d skipped, %d updated (%d total)\n",
		cBold, cNone, counts["PASS"], counts["FAIL"], counts["ERROR"], counts["SKIP"], counts["UPDATED"], len(results))
}

func writeJSONReport(results []*FileTestResult) error {
	report := make(map[string]*FileTestResult, len(results))
	for _, r := range results {
		report[r.File] = r
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	path := *outputJSON
	if *goldenDir != "" {
		path = filepath.Join(*goldenDir, *outputJSON)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
