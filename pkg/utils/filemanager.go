// =============================================================================
// Invoice Batch Import - File Manager Utility
// =============================================================================
//
// This module provides the file handling behind directory imports:
//   - Directory management
//   - Input discovery
//   - Input archival (moving processed files)
//   - Report file naming and writing
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to the archive directory once a batch report
//     has been produced for them
//   - Rejected files stay in the input directory and their
//     failure report is written to the output directory
//   - Reports are written to a temporary file and renamed into place, so a
//     reader never sees a half-written report
//
// =============================================================================

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles the inbox directories.
type FileManager struct {
	// InputDir is the directory where import files are dropped.
	InputDir string

	// ArchiveDir receives input files after they were processed.
	ArchiveDir string

	// OutputDir receives batch reports.
	OutputDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/batch.csv
	UseTimestampSubdirs bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, archiveDir, outputDir string) *FileManager {
	return &FileManager{
		InputDir:   inputDir,
		ArchiveDir: archiveDir,
		OutputDir:  outputDir,
		now:        time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.ArchiveDir, fm.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists regular files in the input directory whose
// extension matches one of exts, case-insensitively. Subdirectories and
// dot-files are ignored. The result is sorted by name.
//
// PARAMETERS:
//   - exts: Extensions including the dot, e.g. ".csv", ".xlsx".
//           If empty, defaults to ".csv".
func (fm *FileManager) DiscoverInputFiles(exts ...string) ([]string, error) {
	if len(exts) == 0 {
		exts = []string{".csv"}
	}

	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !hasExtension(name, exts) {
			continue
		}
		files = append(files, filepath.Join(fm.InputDir, name))
	}

	sort.Strings(files)
	return files, nil
}

func hasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory. A file of
// the same name already in the archive is never overwritten; the new one
// gets a timestamp suffix instead.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.archivePath(filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) archivePath(filePath string) string {
	now := fm.clock()
	dir := fm.ArchiveDir
	if fm.UseTimestampSubdirs {
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}

	name := filepath.Base(filePath)
	path := filepath.Join(dir, name)
	if !FileExists(path) {
		return path
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405.000"), ext))
}

// =============================================================================
// REPORT FILES
// =============================================================================

// GenerateOutputFileName builds "{base}_{timestamp}_{uuid}{ext}" where base
// is the input file name without its extension.
//
// EXAMPLE:
//   inputName: "january.csv", ext: ".json"
//   output:    "january_20240115_143022_a1b2c3d4-e5f6-7890-abcd-ef1234567890.json"
func GenerateOutputFileName(inputName, ext string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	if base == "" || base == "." {
		base = "batch"
	}
	return fmt.Sprintf("%s_%s_%s%s", base, now.Format("20060102_150405"), uuid.New().String(), ext)
}

// WriteReportFile writes a report for inputName into the output directory.
//
// PARAMETERS:
//   - inputName: The input file the report belongs to.
//   - ext: The report file extension, e.g. ".json".
//   - write: Encodes the report.
//
// RETURNS:
//   - The path to the report file.
func (fm *FileManager) WriteReportFile(inputName, ext string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(fm.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(fm.OutputDir, GenerateOutputFileName(inputName, ext, fm.clock()))

	tmp, err := os.CreateTemp(fm.OutputDir, ".report-*")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}

	return path, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
