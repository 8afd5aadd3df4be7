/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/HamedShams/effort-pulse/internal/domain"
)

var filenameRe = regexp.MustCompile(`^effort-report-\d{8}-\d{6}-\d{3}\.pdf$`)

// ValidFilename reports whether name is a report file this service produced.
func ValidFilename(name string) bool { return filenameRe.MatchString(name) }

type Entry struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"modifiedAt"`
}

// Archive is the on-disk report history.
type Archive struct {
	dir string
}

func NewArchive(dir string) *Archive { return &Archive{dir: dir} }

func (a *Archive) Dir() string { return a.dir }

// List returns stored reports, newest first.
func (a *Archive) List() ([]Entry, error) {
	ents, err := os.ReadDir(a.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	out := []Entry{}
	for _, e := range ents {
		if e.IsDir() || !ValidFilename(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Filename:  e.Name(),
			Size:      info.Size(),
			CreatedAt: createdAt(e.Name(), info.ModTime()),
			UpdatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename > out[j].Filename })
	return out, nil
}

// createdAt recovers the generation time embedded in the filename.
func createdAt(name string, fallback time.Time) time.Time {
	// effort-report-YYYYMMDD-HHMMSS-mmm.pdf
	const prefix = len("effort-report-")
	t, err := time.Parse("20060102-150405", name[prefix:prefix+15])
	if err != nil {
		return fallback.UTC()
	}
	ms, err := strconv.Atoi(name[prefix+16 : prefix+19])
	if err != nil {
		return fallback.UTC()
	}
	return t.Add(time.Duration(ms) * time.Millisecond)
}

// Path resolves a validated report name to an existing file.
func (a *Archive) Path(name string) (string, error) {
	if !ValidFilename(name) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidFilename, name)
	}
	p := filepath.Join(a.dir, name)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NotFound("report", name)
		}
		return "", err
	}
	return p, nil
}

func (a *Archive) Delete(name string) error {
	p, err := a.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(p)
}
